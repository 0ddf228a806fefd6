package game

// TransferPiece hands a minted piece to another player. Burn rights follow
// the piece.
func (g *Game) TransferPiece(from, to string, id uint64) error {
	r, err := g.begin()
	if err != nil {
		return err
	}
	if err := mutable(r.m); err != nil {
		return err
	}
	if from == to {
		return guardf("transfer of piece %d to its holder", id)
	}
	return g.env.Pieces.Transfer(from, to, id)
}

package matrixutil

// Position identifies one cell of a row-major mask.
type Position struct {
	Row int
	Col int
}

// TruePositions returns the coordinates of every true cell in a row-major
// boolean mask with the given number of columns, in row-major order.
func TruePositions(mask []bool, cols int) []Position {
	if cols <= 0 {
		return nil
	}
	var positions []Position
	for i, set := range mask {
		if set {
			positions = append(positions, Position{Row: i / cols, Col: i % cols})
		}
	}
	return positions
}

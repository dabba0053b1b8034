package game

// lines are the eight winning rows, columns and diagonals.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// NewBoard returns an empty board.
func NewBoard() []string {
	b := make([]string, BoardSize)
	for i := range b {
		b[i] = Empty
	}
	return b
}

// Evaluate returns the status implied by the board: a completed line of
// Player or Opponent marks, a full board, or Playing.
func Evaluate(board []string) Status {
	for _, l := range lines {
		a := board[l[0]]
		if a == Empty || a != board[l[1]] || a != board[l[2]] {
			continue
		}
		switch a {
		case Player:
			return YouWin
		case Opponent:
			return YouLose
		}
	}
	if firstEmpty(board) < 0 {
		return Tie
	}
	return Playing
}

// canPlace reports whether cell is on the board and free.
func canPlace(board []string, cell int64) bool {
	return cell >= 0 && cell < BoardSize && board[cell] == Empty
}

// opponentMove places the opponent's mark on the first free cell.
func opponentMove(board []string) {
	if i := firstEmpty(board); i >= 0 {
		board[i] = Opponent
	}
}

func firstEmpty(board []string) int {
	for i, c := range board {
		if c == Empty {
			return i
		}
	}
	return -1
}

package attribution

// DefaultColor is used for unattributed text and for tags naming unknown users.
const DefaultColor = "#000000"

// Palette is indexed by user id. Collisions past its size are expected.
var Palette = [...]string{
	"#FFD700",
	"#FF4444",
	"#3B82F6",
	"#10B981",
	"#8B5CF6",
	"#F97316",
}

// Color returns the display color of a user. It is defined for every id,
// negative ones included.
func Color(userID int64) string {
	n := int64(len(Palette))
	idx := userID % n
	if idx < 0 {
		idx += n
	}
	return Palette[idx]
}

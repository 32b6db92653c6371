package model

// Location identifies where distributed stock sits. The empty location
// means the item has never been distributed.
type Location string

// Showrooms.
const (
	LocationNone   Location = ""
	LocationDar    Location = "dar"
	LocationDodoma Location = "dodoma"
)

// Showrooms lists every location stock can be distributed to.
var Showrooms = []Location{LocationDar, LocationDodoma}

// Valid reports whether l is one of the showrooms.
func (l Location) Valid() bool {
	return l == LocationDar || l == LocationDodoma
}

// DisplayName returns the human readable showroom name.
func (l Location) DisplayName() string {
	switch l {
	case LocationDar:
		return "Dar es Salaam"
	case LocationDodoma:
		return "Dodoma"
	default:
		return "Warehouse"
	}
}

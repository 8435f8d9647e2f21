package domain

import "fmt"

type Player uint8

const (
	None Player = 0
	Ruby Player = 1
	Blue Player = 2
)

// InitialPlayer always opens a new game
const InitialPlayer = Ruby

const (
	Rows    = 6
	Columns = 7
	ToWin   = 4
)

// NoRow is returned by ColumnTop for a column without an empty cell
const NoRow = -1

func (p Player) Other() Player {
	switch p {
	case Ruby:
		return Blue
	case Blue:
		return Ruby
	}
	return None
}

func (p Player) Valid() bool {
	return p == Ruby || p == Blue
}

func (p Player) String() string {
	switch p {
	case Ruby:
		return "RUBY"
	case Blue:
		return "BLUE"
	}
	return ""
}

func (p Player) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Player) UnmarshalText(text []byte) error {
	parsed, err := ParsePlayer(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePlayer accepts "RUBY", "BLUE" and "" (no player)
func ParsePlayer(s string) (Player, error) {
	switch s {
	case "RUBY", "ruby", "Ruby":
		return Ruby, nil
	case "BLUE", "blue", "Blue":
		return Blue, nil
	case "":
		return None, nil
	}
	return None, fmt.Errorf("unknown player %q", s)
}

type Move struct {
	Column int    `json:"column"`
	Row    int    `json:"row"`
	Player Player `json:"player"`
}

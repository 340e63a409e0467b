package dynsql

import (
	"github.com/Konsultn-Engineering/silence/dberr"
)

// BlockKind identifies a dynamic block by its opener.
type BlockKind uint8

const (
	BlockIf      BlockKind = iota + 1 // &[cond: body]
	BlockWhere                        // @[body]
	BlockForeach                      // %[o=..,c=..,s=..,i=..,v=..: body]
)

func (k BlockKind) String() string {
	switch k {
	case BlockIf:
		return "if"
	case BlockWhere:
		return "where"
	case BlockForeach:
		return "foreach"
	}
	return "unknown"
}

// Position is the byte span [Begin, End) of one outermost block, End
// pointing just past its closing bracket.
type Position struct {
	Begin int
	End   int
	Kind  BlockKind
}

func openerAt(s string, i int) BlockKind {
	if i+1 >= len(s) || s[i+1] != '[' {
		return 0
	}
	switch s[i] {
	case '&':
		return BlockIf
	case '@':
		return BlockWhere
	case '%':
		return BlockForeach
	}
	return 0
}

// Scan returns the outermost blocks of template in order. Openers raise the
// depth and every ']' lowers it; a ']' outside any block is literal text.
func Scan(template string) ([]Position, error) {
	var (
		positions []Position
		depth     int
		current   Position
	)

	for i := 0; i < len(template); i++ {
		if kind := openerAt(template, i); kind != 0 {
			if depth == 0 {
				current = Position{Begin: i, Kind: kind}
			}
			depth++
			i++
			continue
		}
		if template[i] == ']' && depth > 0 {
			depth--
			if depth == 0 {
				current.End = i + 1
				positions = append(positions, current)
			}
		}
	}

	if depth != 0 {
		return nil, dberr.New(dberr.KindTemplateSyntax, "scan",
			"%s block at offset %d is not closed", current.Kind, current.Begin)
	}
	return positions, nil
}

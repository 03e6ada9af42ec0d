package config

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// code page of .occ files shipped with the game
const DefaultEncoding = "Windows 1252"

func FindCharmap(name string) (*charmap.Charmap, error) {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && cm.String() == name {
			return cm, nil
		}
	}
	return nil, errors.Errorf("Unknown encoding %q, known: %s", name, strings.Join(ListEncodings(), ", "))
}

func ListEncodings() []string {
	list := make([]string, 0, len(charmap.All))
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

// Charmap of text companion formats, empty or unknown encoding falls back to DefaultEncoding
func (c *Config) Charmap() *charmap.Charmap {
	if c.Encoding != "" {
		if cm, err := FindCharmap(c.Encoding); err == nil {
			return cm
		}
	}
	return charmap.Windows1252
}

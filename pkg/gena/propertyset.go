package gena

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// ParsePropertySet extracts variable/value pairs from a UPnP propertyset
// document (the body of a NOTIFY request), per spec.md §4.2: for every
// element whose immediate parent is named "property" (case-insensitive,
// namespace prefix ignored), the pair (child local name, trimmed character
// data) is emitted. A later duplicate name overwrites an earlier one.
func ParsePropertySet(body []byte) (PropertySet, error) {
	reader, err := charset.NewReader(strings.NewReader(string(body)), "text/xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	dec := xml.NewDecoder(reader)

	result := make(PropertySet)

	// path holds the local (namespace-stripped) names of currently open
	// elements; path[len(path)-2] is the parent of the element whose
	// EndElement we are handling.
	var path []string
	var chardata strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			path = append(path, t.Name.Local)
			chardata.Reset()
		case xml.CharData:
			chardata.Write(t)
		case xml.EndElement:
			if len(path) == 0 {
				return nil, fmt.Errorf("%w: unbalanced element %q", ErrParseFailed, t.Name.Local)
			}
			name := path[len(path)-1]
			if name != t.Name.Local {
				return nil, fmt.Errorf("%w: mismatched end tag %q, expected %q", ErrParseFailed, t.Name.Local, name)
			}
			parent := "root"
			if len(path) >= 2 {
				parent = path[len(path)-2]
			}
			if strings.EqualFold(parent, "property") {
				result[name] = strings.TrimSpace(chardata.String())
			}
			chardata.Reset()
			path = path[:len(path)-1]
		}
	}

	return result, nil
}

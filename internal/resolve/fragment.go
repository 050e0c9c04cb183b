package resolve

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/dom"
)

// extractFragment returns the children of the first element with id fragment.
func extractFragment(t *dom.Tree, nodes []dom.NodeID, fragment string) ([]dom.NodeID, error) {
	for _, n := range nodes {
		if found := t.FindByID(n, fragment); found != dom.None {
			kids := t.Children(found)
			for _, k := range kids {
				t.Detach(k)
			}
			return kids, nil
		}
	}
	return nil, fmt.Errorf("fragment #%s not found", fragment)
}

// trimWhitespace strips leading and trailing whitespace from the outermost text nodes.
func trimWhitespace(t *dom.Tree, nodes []dom.NodeID) {
	if len(nodes) == 0 {
		return
	}
	if first := nodes[0]; t.Type(first) == dom.TextNode {
		t.SetData(first, strings.TrimLeft(t.Data(first), " \t\r\n"))
	}
	if last := nodes[len(nodes)-1]; t.Type(last) == dom.TextNode {
		t.SetData(last, strings.TrimRight(t.Data(last), " \t\r\n"))
	}
}

package dom

// Kind is the closed set of element kinds the resolver and transform pipeline
// dispatch on. Unrecognized tags map to KindOther.
type Kind uint8

const (
	KindOther Kind = iota
	KindInclude
	KindPanel
	KindPopover
	KindVariable
	KindTemplate
	KindHeading
	KindAnchor
	KindImage
	KindLink
	KindScript
	KindIframe
	KindHeadTop
	KindHeadBottom
	KindScriptBottom
)

var kindByTag = map[string]Kind{
	"include":       KindInclude,
	"panel":         KindPanel,
	"popover":       KindPopover,
	"variable":      KindVariable,
	"template":      KindTemplate,
	"h1":            KindHeading,
	"h2":            KindHeading,
	"h3":            KindHeading,
	"h4":            KindHeading,
	"h5":            KindHeading,
	"h6":            KindHeading,
	"a":             KindAnchor,
	"img":           KindImage,
	"link":          KindLink,
	"script":        KindScript,
	"iframe":        KindIframe,
	"head-top":      KindHeadTop,
	"head-bottom":   KindHeadBottom,
	"script-bottom": KindScriptBottom,
}

// KindOf maps a lowercase tag name to its Kind.
func KindOf(tag string) Kind {
	if k, ok := kindByTag[tag]; ok {
		return k
	}
	return KindOther
}

var kindNames = [...]string{
	KindOther:        "other",
	KindInclude:      "include",
	KindPanel:        "panel",
	KindPopover:      "popover",
	KindVariable:     "variable",
	KindTemplate:     "template",
	KindHeading:      "heading",
	KindAnchor:       "a",
	KindImage:        "img",
	KindLink:         "link",
	KindScript:       "script",
	KindIframe:       "iframe",
	KindHeadTop:      "head-top",
	KindHeadBottom:   "head-bottom",
	KindScriptBottom: "script-bottom",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "other"
}

// HeadingLevel returns 1-6 for h1-h6 tags and 0 otherwise.
func HeadingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// Package z3950 is a minimal Z39.50 client: session setup, RPN search and
// record retrieval over BER-encoded PDUs.
package z3950

// PDU tags.
const (
	TagInitializeRequest  = 20
	TagInitializeResponse = 21
	TagSearchRequest      = 22
	TagSearchResponse     = 23
	TagPresentRequest     = 24
	TagPresentResponse    = 25
	TagClose              = 48
)

// Record syntax OIDs.
const (
	OIDBib1    = "1.2.840.10003.3.1"
	OIDMARC21  = "1.2.840.10003.5.10"
	OIDUNIMARC = "1.2.840.10003.5.1"
	OIDSUTRS   = "1.2.840.10003.5.101"
)

// BER encodings of the OIDs above.
var oidBytes = map[string][]byte{
	OIDBib1:    {0x2A, 0x86, 0x48, 0xCE, 0x13, 0x03, 0x01},
	OIDMARC21:  {0x2A, 0x86, 0x48, 0xCE, 0x13, 0x05, 0x0A},
	OIDUNIMARC: {0x2A, 0x86, 0x48, 0xCE, 0x13, 0x05, 0x01},
	OIDSUTRS:   {0x2A, 0x86, 0x48, 0xCE, 0x13, 0x05, 0x65},
}

// SyntaxOID maps a target encoding name to its record syntax. Unknown
// names fall back to MARC 21.
func SyntaxOID(encoding string) string {
	switch encoding {
	case "UNIMARC":
		return OIDUNIMARC
	case "SUTRS":
		return OIDSUTRS
	default:
		return OIDMARC21
	}
}

// Bib-1 use attributes.
const (
	UseAttributePersonalName = 1
	UseAttributeTitle        = 4
	UseAttributeISBN         = 7
	UseAttributeISSN         = 8
	UseAttributeSubject      = 21
	UseAttributeAuthor       = 1003
	UseAttributeAny          = 1016
)

// QueryNode is a node of an RPN query tree.
type QueryNode interface {
	isQueryNode()
}

// QueryClause is a single attribute/term leaf.
type QueryClause struct {
	Attribute int
	Term      string
}

func (QueryClause) isQueryNode() {}

// QueryComplex joins two subtrees with "AND", "OR" or "AND-NOT".
type QueryComplex struct {
	Operator string
	Left     QueryNode
	Right    QueryNode
}

func (QueryComplex) isQueryNode() {}

// AnyOf is a keyword search over the "any" index.
func AnyOf(term string) QueryNode {
	return QueryClause{Attribute: UseAttributeAny, Term: term}
}

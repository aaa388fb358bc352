// Package catalog defines the canonical records every data source produces.
package catalog

import "strings"

// IDSeparator joins a source id and a source-local id.
const IDSeparator = "::"

// Book is a normalized catalog entry. String fields a source cannot supply
// are left empty rather than omitted.
type Book struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Authors         string   `json:"authors"`
	Publisher       string   `json:"publisher"`
	Link            string   `json:"link"`
	AdditionSymbol  string   `json:"addition_symbol"`
	ISBN            string   `json:"isbn"`
	SetISBN         string   `json:"set_isbn"`
	KDC             string   `json:"kdc"`
	PublicationYear string   `json:"publication_year"`
	RegDate         string   `json:"reg_date"`
	Vol             string   `json:"vol"`
	BookCount       int32    `json:"book_count"`
	LoanCount       int32    `json:"loan_count"`
	Library         *Library `json:"library,omitempty"`
}

// Library describes the institution holding a Book.
type Library struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Closed        string    `json:"closed"`
	Homepage      string    `json:"homepage"`
	OperatingTime string    `json:"operating_time"`
	Tel           string    `json:"tel"`
	Location      *Location `json:"location,omitempty"`
}

// Location is a geographic coordinate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NamespacedID builds "<source>::<local>".
func NamespacedID(source, local string) string {
	return source + IDSeparator + local
}

// SplitID is the inverse of NamespacedID. ok is false when id carries no
// separator or either half is empty.
func SplitID(id string) (source, local string, ok bool) {
	source, local, found := strings.Cut(id, IDSeparator)
	if !found || source == "" || local == "" {
		return "", "", false
	}
	return source, local, true
}

// NewLibrary returns a Library that only knows its namespaced code.
func NewLibrary(source, code string) *Library {
	return &Library{ID: NamespacedID(source, code)}
}

// Valid reports whether the Book id is namespaced with a non-empty local part.
func (b Book) Valid() bool {
	_, _, ok := SplitID(b.ID)
	return ok
}

// From reports whether the Book was produced by the given source.
func (b Book) From(source string) bool {
	src, _, ok := SplitID(b.ID)
	return ok && src == source
}

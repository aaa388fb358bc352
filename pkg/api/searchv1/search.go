// Package searchv1 holds the wire messages of the heek.lihee.Search service.
// Messages are plain structs carried by a JSON codec, with field names in
// proto3 JSON form.
package searchv1

import (
	"encoding/json"
	"fmt"

	"github.com/yourusername/lihee-search/pkg/catalog"
)

type GetBooksPayload struct {
	Keyword string `json:"keyword"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Library struct {
	Id            string    `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Closed        string    `json:"closed"`
	Homepage      string    `json:"homepage"`
	OperatingTime string    `json:"operatingTime"`
	Tel           string    `json:"tel"`
	Location      *Location `json:"location,omitempty"`
}

type Book struct {
	Id              string   `json:"id"`
	Title           string   `json:"title"`
	Authors         string   `json:"authors"`
	Publisher       string   `json:"publisher"`
	Link            string   `json:"link"`
	AdditionSymbol  string   `json:"additionSymbol"`
	Isbn            string   `json:"isbn"`
	SetIsbn         string   `json:"setIsbn"`
	Kdc             string   `json:"kdc"`
	PublicationYear string   `json:"publicationYear"`
	RegDate         string   `json:"regDate"`
	Vol             string   `json:"vol"`
	BookCount       int32    `json:"bookCount"`
	LoanCount       int32    `json:"loanCount"`
	Library         *Library `json:"library,omitempty"`
}

// FromCatalog converts a canonical Book to its wire form.
func FromCatalog(b catalog.Book) *Book {
	out := &Book{
		Id:              b.ID,
		Title:           b.Title,
		Authors:         b.Authors,
		Publisher:       b.Publisher,
		Link:            b.Link,
		AdditionSymbol:  b.AdditionSymbol,
		Isbn:            b.ISBN,
		SetIsbn:         b.SetISBN,
		Kdc:             b.KDC,
		PublicationYear: b.PublicationYear,
		RegDate:         b.RegDate,
		Vol:             b.Vol,
		BookCount:       b.BookCount,
		LoanCount:       b.LoanCount,
	}
	if l := b.Library; l != nil {
		out.Library = &Library{
			Id:            l.ID,
			Name:          l.Name,
			Address:       l.Address,
			Closed:        l.Closed,
			Homepage:      l.Homepage,
			OperatingTime: l.OperatingTime,
			Tel:           l.Tel,
		}
		if l.Location != nil {
			out.Library.Location = &Location{Latitude: l.Location.Latitude, Longitude: l.Location.Longitude}
		}
	}
	return out
}

// Codec is connect's "json" codec for the plain structs above.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		// An empty body is the zero message.
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

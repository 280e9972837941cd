package bank

import (
	"github.com/PuerkitoBio/goquery"
)

// AttributeExtractor pulls a named attribute from the first element matching
// a CSS selector. The login handshake depends on hidden fields in live
// portal HTML; keeping the extraction behind an interface lets the handshake
// be tested against fixed HTML fixtures.
type AttributeExtractor interface {
	// Extract returns the attribute value, or "" when the element or
	// attribute is absent. Absence is never an error: the portal is free
	// to drop workflow fields and the login POST sends empty strings.
	Extract(doc *goquery.Document, selector, attribute string) string
}

// GoqueryExtractor is the production AttributeExtractor.
type GoqueryExtractor struct{}

func (GoqueryExtractor) Extract(doc *goquery.Document, selector, attribute string) string {
	val, _ := doc.Find(selector).First().Attr(attribute)
	return val
}

// Package importer parses EndNote XML exports into library references.
//
// EndNote wraps nearly every text value in <style> formatting elements:
//
//	<titles><title><style face="normal" ...>Some Title</style></title></titles>
//
// so field decoding flattens all nested character data. The decoder
// streams record by record; memory use is independent of export size.
package importer

import (
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	enerr "github.com/gokmengokhan/endnote-mcp/internal/errors"
	"github.com/gokmengokhan/endnote-mcp/internal/library"
)

// flatText collects all character data inside an element, including text
// nested in <style> children, trimmed.
type flatText string

func (f *flatText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	*f = flatText(strings.TrimSpace(sb.String()))
	return nil
}

type xmlRefType struct {
	Name string `xml:"name,attr"`
}

type xmlRecord struct {
	RecNumber      flatText   `xml:"rec-number"`
	RefType        xmlRefType `xml:"ref-type"`
	Authors        []flatText `xml:"contributors>authors>author"`
	Title          flatText   `xml:"titles>title"`
	SecondaryTitle flatText   `xml:"titles>secondary-title"`
	Year           flatText   `xml:"dates>year"`
	Volume         flatText   `xml:"volume"`
	Number         flatText   `xml:"number"`
	Pages          flatText   `xml:"pages"`
	Abstract       flatText   `xml:"abstract"`
	Keywords       []flatText `xml:"keywords>keyword"`
	DOI            flatText   `xml:"electronic-resource-num"`
	RelatedURLs    []flatText `xml:"urls>related-urls>url"`
	PDFURLs        []flatText `xml:"urls>pdf-urls>url"`
	Publisher      flatText   `xml:"publisher"`
	PubLocation    flatText   `xml:"pub-location"`
	Edition        flatText   `xml:"edition"`
	ISBN           flatText   `xml:"isbn"`
	Label          flatText   `xml:"label"`
	Notes          flatText   `xml:"notes"`
}

// Parse reads an EndNote XML export and returns all well-formed records.
// Records without a numeric rec-number are skipped. Any XML error is
// fatal: a broken export must never produce a partial index run.
func Parse(ctx context.Context, r io.Reader) ([]*library.Reference, error) {
	dec := xml.NewDecoder(r)
	var refs []*library.Reference

	for {
		if err := ctx.Err(); err != nil {
			return nil, enerr.ImportFailed("import cancelled", err)
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, enerr.ImportFailed("malformed EndNote XML", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}

		var rec xmlRecord
		if err := dec.DecodeElement(&rec, &start); err != nil {
			return nil, enerr.ImportFailed("malformed record element", err)
		}

		recNumber, err := strconv.Atoi(string(rec.RecNumber))
		if err != nil {
			continue
		}

		refs = append(refs, &library.Reference{
			RecNumber:      recNumber,
			RefType:        rec.RefType.Name,
			Title:          string(rec.Title),
			Authors:        textSlice(rec.Authors),
			Year:           string(rec.Year),
			Journal:        string(rec.SecondaryTitle),
			Volume:         string(rec.Volume),
			Issue:          string(rec.Number),
			Pages:          string(rec.Pages),
			Abstract:       string(rec.Abstract),
			Keywords:       textSlice(rec.Keywords),
			DOI:            string(rec.DOI),
			URL:            firstText(rec.RelatedURLs),
			Publisher:      string(rec.Publisher),
			PlacePublished: string(rec.PubLocation),
			Edition:        string(rec.Edition),
			ISBN:           string(rec.ISBN),
			Label:          string(rec.Label),
			Notes:          string(rec.Notes),
			PDFPath:        pdfFilename(rec.PDFURLs),
		})
	}

	return refs, nil
}

func textSlice(in []flatText) []string {
	var out []string
	for _, t := range in {
		if t != "" {
			out = append(out, string(t))
		}
	}
	return out
}

func firstText(in []flatText) string {
	for _, t := range in {
		if t != "" {
			return string(t)
		}
	}
	return ""
}

// pdfFilename extracts the attachment filename from internal-pdf:// URLs.
// EndNote writes either internal-pdf://filename.pdf or
// internal-pdf://0123456789/filename.pdf; the last component is the file.
func pdfFilename(urls []flatText) string {
	for _, u := range urls {
		s := string(u)
		if !strings.HasPrefix(s, "internal-pdf://") {
			continue
		}
		s = strings.TrimPrefix(s, "internal-pdf://")
		if i := strings.LastIndex(s, "/"); i >= 0 {
			s = s[i+1:]
		}
		return s
	}
	return ""
}

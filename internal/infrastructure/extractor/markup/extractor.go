package markup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
	"github.com/d3i-infra/port-google-home/internal/core/ports"
	"github.com/d3i-infra/port-google-home/internal/infrastructure/extractor/textfix"
)

// CardClass is the exact class attribute of an activity card in the
// My Activity HTML export.
const CardClass = "content-cell mdl-cell mdl-cell--6-col mdl-typography--body-1"

// Extractor reads interaction cards from the HTML activity page. It works
// for every export language since it relies on structure, not wording.
type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(_ context.Context, archive ports.Archive, category domain.Category) ([]domain.RawInteraction, error) {
	name := category.ExtractionFile()
	if name == "" {
		return nil, domain.WrapError(domain.ErrFormatUnrecognized, "markup extract", fmt.Errorf("category %s has no html file", category.ID))
	}
	raw, err := archive.ReadMember(name)
	if err != nil {
		return nil, domain.WrapError(domain.ErrContainer, "markup extract", err)
	}

	interactions, dropped := ParseCards(bytes.NewReader(raw))
	for _, cardErr := range dropped {
		e.logger.Warn("markup_card_dropped", "category", category.ID, "error", cardErr)
	}
	e.logger.Debug("markup_cards_parsed", "category", category.ID, "cards", len(interactions), "dropped", len(dropped))
	return interactions, nil
}

// ParseCards returns one interaction per card in document order, plus an
// error for every card that had to be skipped.
func ParseCards(r io.Reader) ([]domain.RawInteraction, []error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, []error{domain.WrapError(domain.ErrShapeMismatch, "parse html", err)}
	}

	var (
		out     []domain.RawInteraction
		dropped []error
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isCard(n) {
			interaction, err := parseCard(n)
			if err != nil {
				dropped = append(dropped, err)
			} else {
				out = append(out, interaction)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return out, dropped
}

func isCard(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "div" {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			return attr.Val == CardClass
		}
	}
	return false
}

var errEmptyCard = errors.New("card has no content")

func parseCard(card *html.Node) (domain.RawInteraction, error) {
	var children []*html.Node
	for child := card.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}
	if len(children) == 0 {
		return domain.RawInteraction{}, domain.WrapError(domain.ErrRecordParse, "parse card", errEmptyCard)
	}

	var interaction domain.RawInteraction
	commandSeen := false
	for i, child := range children {
		if child.Type != html.ElementNode {
			continue
		}
		switch child.Data {
		case "a":
			if !commandSeen {
				interaction.Command = textfix.RepairLatin1(nodeText(child))
				commandSeen = true
			}
		case "br":
			// A br followed by the timestamp only (the last two nodes) does
			// not introduce a response.
			if i < len(children)-2 {
				interaction.Response = textfix.RepairLatin1(nodeText(children[i+1]))
				interaction.HasResponse = true
			}
		}
	}
	interaction.Timestamp = strings.TrimSpace(nodeText(children[len(children)-1]))
	return interaction, nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return b.String()
}

package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jomei/notionapi"
)

var _ Publisher = (*NotionPublisher)(nil)

// NotionPublisher creates one child page per ended conversation under a parent page.
type NotionPublisher struct {
	client       *notionapi.Client
	parentPageID notionapi.PageID
}

// NewNotionPublisher creates a publisher for the integration secret and parent page.
// A nil httpClient uses the notionapi default.
func NewNotionPublisher(token, parentPageID string, httpClient *http.Client) (*NotionPublisher, error) {
	if token == "" || parentPageID == "" {
		return nil, errors.New("notion publisher needs both a token and a parent page ID")
	}
	var opts []notionapi.ClientOption
	if httpClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(httpClient))
	}
	return &NotionPublisher{
		client:       notionapi.NewClient(notionapi.Token(token), opts...),
		parentPageID: notionapi.PageID(parentPageID),
	}, nil
}

func (p *NotionPublisher) Name() string { return "notion" }

// Publish writes the summary as a page titled after the conversation.
func (p *NotionPublisher) Publish(ctx context.Context, s Summary) error {
	page, err := p.client.Page.Create(ctx, pageRequest(p.parentPageID, s))
	if err != nil {
		var notionErr *notionapi.Error
		if errors.As(err, &notionErr) {
			return fmt.Errorf("notion API error (%s): %s", notionErr.Code, notionErr.Message)
		}
		return fmt.Errorf("failed to create Notion page: %w", err)
	}
	if page == nil {
		return errors.New("notion returned no page")
	}
	return nil
}

func pageRequest(parent notionapi.PageID, s Summary) *notionapi.PageCreateRequest {
	children := []notionapi.Block{}
	if s.Summary != "" {
		children = append(children, paragraph(s.Summary))
	}
	if len(s.Topics) > 0 {
		children = append(children, paragraph(fmt.Sprintf("Topics: %s", strings.Join(s.Topics, ", "))))
	}
	if s.Sentiment != "" {
		children = append(children, paragraph("Sentiment: "+s.Sentiment))
	}
	children = appendSection(children, "Decisions", s.Decisions)
	children = appendSection(children, "Action items", s.ActionItems)

	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: parent,
		},
		Properties: notionapi.Properties{
			"title": notionapi.TitleProperty{
				Title: []notionapi.RichText{{Text: &notionapi.Text{Content: s.Title}}},
			},
		},
		Children: children,
	}
}

func appendSection(blocks []notionapi.Block, heading string, items []string) []notionapi.Block {
	if len(items) == 0 {
		return blocks
	}
	blocks = append(blocks, &notionapi.Heading3Block{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading3},
		Heading3:   notionapi.Heading{RichText: richText(heading)},
	})
	for _, item := range items {
		blocks = append(blocks, &notionapi.BulletedListItemBlock{
			BasicBlock:       notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeBulletedListItem},
			BulletedListItem: notionapi.ListItem{RichText: richText(item)},
		})
	}
	return blocks
}

func paragraph(text string) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
		Paragraph:  notionapi.Paragraph{RichText: richText(text)},
	}
}

func richText(text string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: text}}}
}

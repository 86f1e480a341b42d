package backlog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DocumentListOptions configures GET /documents.
type DocumentListOptions struct {
	ProjectIDs []int
	Keyword    string
	Sort       string
	Order      string
	Offset     int
	Count      int
}

// DocumentRequest is the form body for creating a document.
type DocumentRequest struct {
	ProjectID int
	Title     string
	Content   string
	Emoji     string
	ParentID  string
	AddLast   *bool
}

// WikiListOptions configures GET /wikis.
type WikiListOptions struct {
	ProjectIDOrKey string
	Keyword        string
}

// WikiRequest is the form body for creating or updating a wiki page.
type WikiRequest struct {
	ProjectID  int
	Name       string
	Content    string
	MailNotify *bool
}

// GetDocuments lists documents. Backlog requires an explicit offset, so
// zero is always sent.
func (c *Client) GetDocuments(ctx context.Context, opts DocumentListOptions) ([]Document, error) {
	query := url.Values{}
	addInts(query, "projectId[]", opts.ProjectIDs)
	setString(query, "keyword", opts.Keyword)
	setString(query, "sort", opts.Sort)
	setString(query, "order", opts.Order)
	query.Set("offset", strconv.Itoa(opts.Offset))
	setInt(query, "count", opts.Count)

	var result []Document
	if err := c.get(ctx, "/documents", query, &result); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return result, nil
}

// GetDocument returns one document.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*Document, error) {
	id := strings.TrimSpace(documentID)
	if id == "" {
		return nil, fmt.Errorf("document id is required")
	}
	var result Document
	if err := c.get(ctx, "/documents/"+escapePath(id), nil, &result); err != nil {
		return nil, fmt.Errorf("getting document %q: %w", id, err)
	}
	return &result, nil
}

// GetDocumentTree returns the document hierarchy of a project.
func (c *Client) GetDocumentTree(ctx context.Context, projectIDOrKey string) (*DocumentTree, error) {
	query := url.Values{}
	query.Set("projectIdOrKey", strings.TrimSpace(projectIDOrKey))
	var result DocumentTree
	if err := c.get(ctx, "/documents/tree", query, &result); err != nil {
		return nil, fmt.Errorf("getting document tree: %w", err)
	}
	return &result, nil
}

// AddDocument creates a document.
func (c *Client) AddDocument(ctx context.Context, req DocumentRequest) (*Document, error) {
	if req.ProjectID == 0 {
		return nil, fmt.Errorf("project id is required")
	}
	form := url.Values{}
	setInt(form, "projectId", req.ProjectID)
	setString(form, "title", req.Title)
	setString(form, "content", req.Content)
	setString(form, "emoji", req.Emoji)
	setString(form, "parentId", req.ParentID)
	setBool(form, "addLast", req.AddLast)

	var result Document
	if err := c.post(ctx, "/documents", form, &result); err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	return &result, nil
}

// GetWikis lists wiki pages of a project.
func (c *Client) GetWikis(ctx context.Context, opts WikiListOptions) ([]Wiki, error) {
	query := url.Values{}
	setString(query, "projectIdOrKey", opts.ProjectIDOrKey)
	setString(query, "keyword", opts.Keyword)
	var result []Wiki
	if err := c.get(ctx, "/wikis", query, &result); err != nil {
		return nil, fmt.Errorf("listing wikis: %w", err)
	}
	return result, nil
}

// GetWiki returns one wiki page.
func (c *Client) GetWiki(ctx context.Context, wikiID int) (*Wiki, error) {
	var result Wiki
	if err := c.get(ctx, "/wikis/"+strconv.Itoa(wikiID), nil, &result); err != nil {
		return nil, fmt.Errorf("getting wiki %d: %w", wikiID, err)
	}
	return &result, nil
}

// AddWiki creates a wiki page.
func (c *Client) AddWiki(ctx context.Context, req WikiRequest) (*Wiki, error) {
	if req.ProjectID == 0 {
		return nil, fmt.Errorf("project id is required")
	}
	form := url.Values{}
	setInt(form, "projectId", req.ProjectID)
	setString(form, "name", req.Name)
	setString(form, "content", req.Content)
	setBool(form, "mailNotify", req.MailNotify)

	var result Wiki
	if err := c.post(ctx, "/wikis", form, &result); err != nil {
		return nil, fmt.Errorf("creating wiki: %w", err)
	}
	return &result, nil
}

// UpdateWiki patches a wiki page.
func (c *Client) UpdateWiki(ctx context.Context, wikiID int, req WikiRequest) (*Wiki, error) {
	form := url.Values{}
	setString(form, "name", req.Name)
	setString(form, "content", req.Content)
	setBool(form, "mailNotify", req.MailNotify)

	var result Wiki
	if err := c.patch(ctx, "/wikis/"+strconv.Itoa(wikiID), form, &result); err != nil {
		return nil, fmt.Errorf("updating wiki %d: %w", wikiID, err)
	}
	return &result, nil
}

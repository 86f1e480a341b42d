package backlog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ProjectListOptions configures GET /projects.
type ProjectListOptions struct {
	// Archived filters by archive state when set.
	Archived *bool
	// All lists every project in the space, not only joined ones (admin only).
	All bool
}

// VersionRequest is the form body for creating or updating a version.
type VersionRequest struct {
	Name           string
	Description    string
	StartDate      string
	ReleaseDueDate string
	Archived       *bool
}

func (r VersionRequest) values() url.Values {
	form := url.Values{}
	setString(form, "name", r.Name)
	setString(form, "description", r.Description)
	setString(form, "startDate", r.StartDate)
	setString(form, "releaseDueDate", r.ReleaseDueDate)
	setBool(form, "archived", r.Archived)
	return form
}

// GetSpace returns the space of the API key.
func (c *Client) GetSpace(ctx context.Context) (*Space, error) {
	var result Space
	if err := c.get(ctx, "/space", nil, &result); err != nil {
		return nil, fmt.Errorf("getting space: %w", err)
	}
	return &result, nil
}

// GetMyself returns the user owning the API key.
func (c *Client) GetMyself(ctx context.Context) (*User, error) {
	var result User
	if err := c.get(ctx, "/users/myself", nil, &result); err != nil {
		return nil, fmt.Errorf("getting current user: %w", err)
	}
	return &result, nil
}

// GetProjects lists projects.
func (c *Client) GetProjects(ctx context.Context, opts ProjectListOptions) ([]Project, error) {
	query := url.Values{}
	setBool(query, "archived", opts.Archived)
	if opts.All {
		query.Set("all", "true")
	}
	var result []Project
	if err := c.get(ctx, "/projects", query, &result); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return result, nil
}

// GetProject returns one project by numeric ID or key.
func (c *Client) GetProject(ctx context.Context, projectIDOrKey string) (*Project, error) {
	idOrKey := strings.TrimSpace(projectIDOrKey)
	if idOrKey == "" {
		return nil, fmt.Errorf("project id or key is required")
	}
	var result Project
	if err := c.get(ctx, "/projects/"+escapePath(idOrKey), nil, &result); err != nil {
		return nil, fmt.Errorf("getting project %q: %w", idOrKey, err)
	}
	return &result, nil
}

// GetVersions lists the versions and milestones of a project.
func (c *Client) GetVersions(ctx context.Context, projectIDOrKey string) ([]Version, error) {
	var result []Version
	path := fmt.Sprintf("/projects/%s/versions", escapePath(projectIDOrKey))
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	return result, nil
}

// AddVersion creates a version in a project.
func (c *Client) AddVersion(ctx context.Context, projectIDOrKey string, req VersionRequest) (*Version, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("version name is required")
	}
	var result Version
	path := fmt.Sprintf("/projects/%s/versions", escapePath(projectIDOrKey))
	if err := c.post(ctx, path, req.values(), &result); err != nil {
		return nil, fmt.Errorf("creating version: %w", err)
	}
	return &result, nil
}

// UpdateVersion patches a version.
func (c *Client) UpdateVersion(ctx context.Context, projectIDOrKey string, versionID int, req VersionRequest) (*Version, error) {
	var result Version
	path := fmt.Sprintf("/projects/%s/versions/%s", escapePath(projectIDOrKey), strconv.Itoa(versionID))
	if err := c.patch(ctx, path, req.values(), &result); err != nil {
		return nil, fmt.Errorf("updating version %d: %w", versionID, err)
	}
	return &result, nil
}

// DeleteVersion deletes a version and returns it.
func (c *Client) DeleteVersion(ctx context.Context, projectIDOrKey string, versionID int) (*Version, error) {
	var result Version
	path := fmt.Sprintf("/projects/%s/versions/%s", escapePath(projectIDOrKey), strconv.Itoa(versionID))
	if err := c.delete(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("deleting version %d: %w", versionID, err)
	}
	return &result, nil
}

// GetCustomFields lists the custom field definitions of a project.
func (c *Client) GetCustomFields(ctx context.Context, projectIDOrKey string) ([]CustomField, error) {
	var result []CustomField
	path := fmt.Sprintf("/projects/%s/customFields", escapePath(projectIDOrKey))
	if err := c.get(ctx, path, nil, &result); err != nil {
		return nil, fmt.Errorf("listing custom fields: %w", err)
	}
	return result, nil
}

package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/hone/internal/models"
)

// TagBody is the wire representation of a Tag.
type TagBody struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func tagToBody(t *models.Tag) TagBody {
	return TagBody{ID: t.ID, Name: t.Name, ParentID: t.ParentID, Color: t.Color, CreatedAt: t.CreatedAt}
}

// ListTagsOutput is the response for listing tags.
type ListTagsOutput struct {
	Body struct {
		Tags []TagBody `json:"tags"`
	}
}

// ListTags returns every tag in the hierarchy.
func (h *Handlers) ListTags(ctx context.Context, _ *struct{}) (*ListTagsOutput, error) {
	tags, err := h.Repos.Tag.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing tags", err)
	}
	out := &ListTagsOutput{}
	for _, t := range tags {
		out.Body.Tags = append(out.Body.Tags, tagToBody(t))
	}
	return out, nil
}

// CreateTagInput is the request body for creating a tag.
type CreateTagInput struct {
	Body struct {
		Name     string `json:"name" minLength:"1"`
		ParentID *int64 `json:"parent_id,omitempty"`
		Color    string `json:"color,omitempty"`
	}
}

// CreateTagOutput is the response for creating a tag.
type CreateTagOutput struct {
	Body TagBody
}

// CreateTag adds a new tag, optionally nested under a parent.
func (h *Handlers) CreateTag(ctx context.Context, in *CreateTagInput) (*CreateTagOutput, error) {
	t := &models.Tag{Name: in.Body.Name, ParentID: in.Body.ParentID, Color: in.Body.Color}
	if err := h.Repos.Tag.Create(ctx, t); err != nil {
		return nil, huma.Error500InternalServerError("creating tag", err)
	}
	return &CreateTagOutput{Body: tagToBody(t)}, nil
}

// GetTagDescendantsInput identifies a tag by path id.
type GetTagDescendantsInput struct {
	ID int64 `path:"id"`
}

// GetTagDescendantsOutput lists a tag and all of its descendants.
type GetTagDescendantsOutput struct {
	Body struct {
		Tags []TagBody `json:"tags"`
	}
}

// GetTagDescendants returns a tag and every tag nested beneath it.
func (h *Handlers) GetTagDescendants(ctx context.Context, in *GetTagDescendantsInput) (*GetTagDescendantsOutput, error) {
	tags, err := h.Repos.Tag.Descendants(ctx, in.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing descendants", err)
	}
	out := &GetTagDescendantsOutput{}
	for _, t := range tags {
		out.Body.Tags = append(out.Body.Tags, tagToBody(t))
	}
	return out, nil
}

// DeleteTagInput identifies a tag to delete.
type DeleteTagInput struct {
	ID int64 `path:"id"`
}

// DeleteTagOutput is an empty response.
type DeleteTagOutput struct{}

// DeleteTag removes a tag.
func (h *Handlers) DeleteTag(ctx context.Context, in *DeleteTagInput) (*DeleteTagOutput, error) {
	if err := h.Repos.Tag.Delete(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("deleting tag", err)
	}
	return &DeleteTagOutput{}, nil
}

// TagRuleBody is the wire representation of a TagRule.
type TagRuleBody struct {
	ID         int64     `json:"id"`
	TagID      int64     `json:"tag_id"`
	Pattern    string    `json:"pattern"`
	MatchField string    `json:"match_field"`
	Priority   int       `json:"priority"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

func tagRuleToBody(r *models.TagRule) TagRuleBody {
	return TagRuleBody{ID: r.ID, TagID: r.TagID, Pattern: r.Pattern, MatchField: r.MatchField, Priority: r.Priority, Source: r.Source, CreatedAt: r.CreatedAt}
}

// ListTagRulesOutput is the response for listing tag rules.
type ListTagRulesOutput struct {
	Body struct {
		Rules []TagRuleBody `json:"rules"`
	}
}

// ListTagRules returns every tag assignment rule, in priority order.
func (h *Handlers) ListTagRules(ctx context.Context, _ *struct{}) (*ListTagRulesOutput, error) {
	rules, err := h.Repos.TagRule.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing tag rules", err)
	}
	out := &ListTagRulesOutput{}
	for _, r := range rules {
		out.Body.Rules = append(out.Body.Rules, tagRuleToBody(r))
	}
	return out, nil
}

// CreateTagRuleInput is the request body for creating a tag rule.
type CreateTagRuleInput struct {
	Body struct {
		TagID      int64  `json:"tag_id"`
		Pattern    string `json:"pattern" minLength:"1"`
		MatchField string `json:"match_field" enum:"merchant,description"`
		Priority   int    `json:"priority"`
	}
}

// CreateTagRuleOutput is the response for creating a tag rule.
type CreateTagRuleOutput struct {
	Body TagRuleBody
}

// CreateTagRule adds a user-authored merchant/description match rule,
// which the tag assigner consults before falling back to AI classification.
func (h *Handlers) CreateTagRule(ctx context.Context, in *CreateTagRuleInput) (*CreateTagRuleOutput, error) {
	r := &models.TagRule{
		TagID:      in.Body.TagID,
		Pattern:    in.Body.Pattern,
		MatchField: in.Body.MatchField,
		Priority:   in.Body.Priority,
		Source:     "user",
	}
	if err := h.Repos.TagRule.Create(ctx, r); err != nil {
		return nil, huma.Error500InternalServerError("creating tag rule", err)
	}
	return &CreateTagRuleOutput{Body: tagRuleToBody(r)}, nil
}

// DeleteTagRuleInput identifies a tag rule to delete.
type DeleteTagRuleInput struct {
	ID int64 `path:"id"`
}

// DeleteTagRuleOutput is an empty response.
type DeleteTagRuleOutput struct{}

// DeleteTagRule removes a tag rule.
func (h *Handlers) DeleteTagRule(ctx context.Context, in *DeleteTagRuleInput) (*DeleteTagRuleOutput, error) {
	if err := h.Repos.TagRule.Delete(ctx, in.ID); err != nil {
		return nil, huma.Error500InternalServerError("deleting tag rule", err)
	}
	return &DeleteTagRuleOutput{}, nil
}

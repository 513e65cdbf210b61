package internal

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
	"charm.land/fantasy/schema"
)

// Provider is the language-model boundary for assisted merges.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GenerateObject(ctx context.Context, prompt string, target any) error
}

type FantasyConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

var _ Provider = (*FantasyProvider)(nil)

type FantasyProvider struct {
	model fantasy.LanguageModel
	name  string
}

func NewFantasyProvider(ctx context.Context, cfg FantasyConfig) (*FantasyProvider, error) {
	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case "openrouter":
		opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
		provider, err = openrouter.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}

	return &FantasyProvider{
		model: model,
		name:  cfg.Provider,
	}, nil
}

func (p *FantasyProvider) Complete(ctx context.Context, prompt string) (string, error) {
	agent := fantasy.NewAgent(p.model)

	result, err := agent.Generate(ctx, fantasy.AgentCall{
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return result.Response.Content.Text(), nil
}

func (p *FantasyProvider) GenerateObject(ctx context.Context, prompt string, target any) error {
	t := reflect.TypeOf(target)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	s := schema.Generate(t)

	call := fantasy.ObjectCall{
		Prompt: fantasy.Prompt{fantasy.NewUserMessage(prompt)},
		Schema: s,
	}

	resp, err := p.model.GenerateObject(ctx, call)
	if err != nil {
		return fmt.Errorf("generate object: %w", err)
	}

	targetVal := reflect.ValueOf(target)
	if targetVal.Kind() != reflect.Ptr {
		return fmt.Errorf("target must be a pointer")
	}

	objVal := reflect.ValueOf(resp.Object)
	if objVal.IsValid() && objVal.Type().AssignableTo(targetVal.Elem().Type()) {
		targetVal.Elem().Set(objVal)
	}

	return nil
}

// Resolution is the structured verdict the model returns for one conflict.
type Resolution struct {
	Action     string            `json:"action"` // keep_ours | keep_theirs | combine | delete
	Content    string            `json:"content"`
	Properties map[string]string `json:"properties"`
	Reasoning  string            `json:"reasoning"`
}

// AssistedResolver resolves merge conflicts by asking a language model to
// reconcile both versions against their common ancestor.
type AssistedResolver struct {
	provider Provider
}

var _ ConflictResolver = (*AssistedResolver)(nil)

func NewAssistedResolver(provider Provider) *AssistedResolver {
	return &AssistedResolver{provider: provider}
}

func (r *AssistedResolver) Resolve(ctx context.Context, c MemoryConflict) (*MemoryRecord, bool, error) {
	var res Resolution
	if err := r.provider.GenerateObject(ctx, resolutionPrompt(c), &res); err != nil {
		return nil, false, err
	}

	switch res.Action {
	case "keep_ours":
		return c.Ours, c.Ours != nil, nil
	case "keep_theirs":
		return c.Theirs, c.Theirs != nil, nil
	case "delete":
		return nil, false, nil
	case "combine":
		if res.Content == "" {
			return nil, false, fmt.Errorf("combine resolution without content")
		}
		return &MemoryRecord{
			ID:         c.ID,
			Content:    res.Content,
			Properties: res.Properties,
		}, true, nil
	default:
		return nil, false, fmt.Errorf("unknown resolution action %q", res.Action)
	}
}

func resolutionPrompt(c MemoryConflict) string {
	var b strings.Builder

	b.WriteString("Two agents edited the same memory record on divergent branches.\n")
	b.WriteString("Decide how to reconcile them. Respond with action keep_ours, keep_theirs,\n")
	b.WriteString("combine (with merged content and properties), or delete.\n\n")
	b.WriteString(RenderConflict(c))
	return b.String()
}

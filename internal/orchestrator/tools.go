// Package orchestrator drives a multi-turn, tool-calling conversation
// between the AI backend and the read-only repository layer, so a user's
// natural-language question ("why did I spend more on dining this month")
// can be answered by letting the model gather its own context rather than
// the caller pre-assembling every possible fact.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmylchreest/hone/internal/repository"
)

// Tool is one read-only capability the model may invoke. Handler never
// mutates the store; it is executed directly against the repository layer,
// with no network hop.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-schema "properties" + "required"
	Handler     func(ctx context.Context, args map[string]any) (string, error)
}

// Registry is the fixed set of tools exposed to the orchestrator loop.
type Registry struct {
	tools []Tool
	byName map[string]Tool
}

// NewRegistry builds the standard read-only tool set over repos.
func NewRegistry(repos *repository.Repositories) *Registry {
	r := &Registry{byName: make(map[string]Tool)}
	r.register(searchTransactionsTool(repos))
	r.register(spendingSummaryTool(repos))
	r.register(listSubscriptionsTool(repos))
	r.register(listAlertsTool(repos))
	r.register(comparePeriodsTool(repos))
	r.register(topMerchantsTool(repos))
	r.register(accountSummaryTool(repos))
	return r
}

func (r *Registry) register(t Tool) {
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

// Tools returns the registered tool set, for schema construction.
func (r *Registry) Tools() []Tool { return r.tools }

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func searchTransactionsTool(repos *repository.Repositories) Tool {
	return Tool{
		Name:        "search_transactions",
		Description: "Search transactions by merchant substring and date range.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"merchant": map[string]any{"type": "string"},
				"from":     map[string]any{"type": "string", "description": "YYYY-MM-DD"},
				"to":       map[string]any{"type": "string", "description": "YYYY-MM-DD"},
				"limit":    map[string]any{"type": "integer"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			filter := repository.TransactionFilter{Limit: argInt(args, "limit", 25)}
			if m, ok := args["merchant"].(string); ok {
				filter.Merchant = m
			}
			if from, err := argTime(args, "from"); err == nil {
				filter.From = from
			}
			if to, err := argTime(args, "to"); err == nil {
				filter.To = to
			}
			txs, err := repos.Transaction.List(ctx, filter)
			if err != nil {
				return "", err
			}
			return marshalResult(txs)
		},
	}
}

func spendingSummaryTool(repos *repository.Repositories) Tool {
	return Tool{
		Name:        "spending_summary",
		Description: "Summarize total spending by tag within a date range.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from": map[string]any{"type": "string", "description": "YYYY-MM-DD"},
				"to":   map[string]any{"type": "string", "description": "YYYY-MM-DD"},
			},
			"required": []string{"from", "to"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			from, err := argTime(args, "from")
			if err != nil || from == nil {
				return "", fmt.Errorf("spending_summary: invalid or missing 'from'")
			}
			to, err := argTime(args, "to")
			if err != nil || to == nil {
				return "", fmt.Errorf("spending_summary: invalid or missing 'to'")
			}
			rows, err := repos.Report.SpendingByTagInRange(ctx, *from, *to)
			if err != nil {
				return "", err
			}
			return marshalResult(rows)
		},
	}
}

func listSubscriptionsTool(repos *repository.Repositories) Tool {
	return Tool{
		Name:        "list_subscriptions",
		Description: "List known subscriptions, optionally including excluded ones.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"include_excluded": map[string]any{"type": "boolean"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			incl, _ := args["include_excluded"].(bool)
			subs, err := repos.Subscription.List(ctx, incl)
			if err != nil {
				return "", err
			}
			return marshalResult(subs)
		},
	}
}

func listAlertsTool(repos *repository.Repositories) Tool {
	return Tool{
		Name:        "list_alerts",
		Description: "List active alerts, optionally including dismissed ones.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"include_dismissed": map[string]any{"type": "boolean"},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			incl, _ := args["include_dismissed"].(bool)
			alerts, err := repos.Alert.ListAlerts(ctx, incl)
			if err != nil {
				return "", err
			}
			return marshalResult(alerts)
		},
	}
}

func comparePeriodsTool(repos *repository.Repositories) Tool {
	return Tool{
		Name:        "compare_periods",
		Description: "Compare total spend for a tag between two date ranges.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tag_id":        map[string]any{"type": "integer"},
				"period_a_from": map[string]any{"type": "string"},
				"period_a_to":   map[string]any{"type": "string"},
				"period_b_from": map[string]any{"type": "string"},
				"period_b_to":   map[string]any{"type": "string"},
			},
			"required": []string{"tag_id", "period_a_from", "period_a_to", "period_b_from", "period_b_to"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			tagID := int64(argInt(args, "tag_id", 0))
			aFrom, _ := argTime(args, "period_a_from")
			aTo, _ := argTime(args, "period_a_to")
			bFrom, _ := argTime(args, "period_b_from")
			bTo, _ := argTime(args, "period_b_to")
			if aFrom == nil || aTo == nil || bFrom == nil || bTo == nil {
				return "", fmt.Errorf("compare_periods: invalid date range")
			}
			aTotal, err := repos.Report.MonthlyTotalForTag(ctx, tagID, *aFrom, *aTo)
			if err != nil {
				return "", err
			}
			bTotal, err := repos.Report.MonthlyTotalForTag(ctx, tagID, *bFrom, *bTo)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]float64{"period_a_total": aTotal, "period_b_total": bTotal})
		},
	}
}

func topMerchantsTool(repos *repository.Repositories) Tool {
	return Tool{
		Name:        "top_merchants",
		Description: "List the highest-spend merchants within a date range.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"from":  map[string]any{"type": "string"},
				"to":    map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
			"required": []string{"from", "to"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			from, _ := argTime(args, "from")
			to, _ := argTime(args, "to")
			if from == nil || to == nil {
				return "", fmt.Errorf("top_merchants: invalid date range")
			}
			rows, err := repos.Report.TopMerchants(ctx, *from, *to, argInt(args, "limit", 10))
			if err != nil {
				return "", err
			}
			return marshalResult(rows)
		},
	}
}

func accountSummaryTool(repos *repository.Repositories) Tool {
	return Tool{
		Name:        "account_summary",
		Description: "List all accounts and overall dashboard statistics.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			accounts, err := repos.Account.List(ctx)
			if err != nil {
				return "", err
			}
			stats, err := repos.Alert.GetDashboardStats(ctx)
			if err != nil {
				return "", err
			}
			return marshalResult(map[string]any{"accounts": accounts, "stats": stats})
		},
	}
}

func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func argInt(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

func argTime(args map[string]any, key string) (*time.Time, error) {
	s, ok := args[key].(string)
	if !ok || s == "" {
		return nil, fmt.Errorf("missing %q", key)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

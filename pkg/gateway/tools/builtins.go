package tools

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/Bhumi-2/Realtime-AI-Backend-WebSockets-Supabase/pkg/backend"
)

const (
	ToolAccountBalance = "fetch_account_balance"
	ToolOrderStatus    = "fetch_order_status"
)

// Builtins returns the default executor set: simulated balance and order
// status lookups. Results derive from a stable hash of the argument so
// repeated calls are reproducible.
func Builtins() []Executor {
	return []Executor{balanceExecutor{}, orderStatusExecutor{}}
}

type balanceExecutor struct{}

func (balanceExecutor) Name() string { return ToolAccountBalance }

func (balanceExecutor) Spec() backend.ToolSpec {
	return backend.ToolSpec{
		Name:        ToolAccountBalance,
		Description: "Get the current account balance for a user.",
		Parameters: map[string]backend.ParamSpec{
			"user_id": {Type: "string", Description: "User identifier"},
		},
		Required: []string{"user_id"},
	}
}

func (balanceExecutor) Execute(_ context.Context, args map[string]any) (string, *ToolError) {
	userID, terr := stringArg(args, "user_id")
	if terr != nil {
		return "", terr
	}
	// 120.00 .. 9339.99 USD, stable per user.
	cents := 12000 + int64(stableHash(userID)%922000)
	return fmt.Sprintf(`{"user_id":%q,"currency":"USD","balance":%d.%02d}`, userID, cents/100, cents%100), nil
}

type orderStatusExecutor struct{}

var orderStatuses = []string{"PROCESSING", "SHIPPED", "DELIVERED", "ON_HOLD"}

func (orderStatusExecutor) Name() string { return ToolOrderStatus }

func (orderStatusExecutor) Spec() backend.ToolSpec {
	return backend.ToolSpec{
		Name:        ToolOrderStatus,
		Description: "Get shipping/delivery status for an order.",
		Parameters: map[string]backend.ParamSpec{
			"order_id": {Type: "string", Description: "Order identifier"},
		},
		Required: []string{"order_id"},
	}
}

func (orderStatusExecutor) Execute(_ context.Context, args map[string]any) (string, *ToolError) {
	orderID, terr := stringArg(args, "order_id")
	if terr != nil {
		return "", terr
	}
	h := stableHash(orderID)
	status := orderStatuses[h%uint64(len(orderStatuses))]
	etaDays := 1 + h%7
	return fmt.Sprintf(`{"order_id":%q,"status":%q,"eta_days":%d}`, orderID, status, etaDays), nil
}

func stableHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

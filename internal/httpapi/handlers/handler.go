// Package handlers implements the §6 HTTP surface over the order-lifecycle
// components: every handler decodes its request, resolves the principal
// from context, calls internal/authz.Evaluate exactly once, then delegates
// to the owning component.
package handlers

import (
	"go.uber.org/zap"

	"delixmi-order-core/internal/cart"
	"delixmi-order-core/internal/config"
	"delixmi-order-core/internal/dispatch"
	"delixmi-order-core/internal/order"
	"delixmi-order-core/internal/payment"
)

// Handler bundles every component a route needs. It carries no request
// state; one instance is shared across all requests.
type Handler struct {
	Logger *zap.Logger
	Config config.Config

	Cart         *cart.Service
	CartRepo     *cart.Repository
	Assembler    *order.Assembler
	StateMachine *order.StateMachine
	Orders       *order.Repository
	Payments     *payment.Coordinator
	Dispatch     *dispatch.Engine
}

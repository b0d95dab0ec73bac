// Package pricing copies catalog prices onto order line items.
//
// A product that cannot be looked up prices at zero. Pricing never fails an
// order mutation; callers get the list of products that fell back so they
// can schedule a re-price.
package pricing

import (
	"context"

	"github.com/imrishuroy/go-orderlines/internal/gateway"
	"github.com/imrishuroy/go-orderlines/internal/orders"
)

// Result reports the outcome of a pricing pass.
type Result struct {
	// Unpriced holds the product ids whose lookup degraded to a zero price.
	Unpriced []int64
}

// Degraded reports whether any line item fell back to a zero price.
func (r Result) Degraded() bool {
	return len(r.Unpriced) > 0
}

type Engine struct {
	products gateway.ProductResolver
	guard    gateway.Guard
}

// NewEngine creates a pricing engine. The guard's failure policy is ignored:
// pricing always degrades to zero.
func NewEngine(products gateway.ProductResolver, guard gateway.Guard) *Engine {
	return &Engine{products: products, guard: guard.FailingOpen()}
}

// PriceLineItem sets li.Price from the catalog.
func (e *Engine) PriceLineItem(ctx context.Context, li *orders.OrderLineItem) Result {
	price, ok := e.lookup(ctx, li.ProductID)
	li.Price = price
	if !ok {
		return Result{Unpriced: []int64{li.ProductID}}
	}
	return Result{}
}

// PriceOrder prices every line item of o. Each distinct product is looked up once.
func (e *Engine) PriceOrder(ctx context.Context, o *orders.Order) Result {
	type quote struct {
		price float64
		ok    bool
	}
	quotes := make(map[int64]quote, len(o.LineItems))

	var res Result
	for i := range o.LineItems {
		li := &o.LineItems[i]
		q, seen := quotes[li.ProductID]
		if !seen {
			q.price, q.ok = e.lookup(ctx, li.ProductID)
			quotes[li.ProductID] = q
			if !q.ok {
				res.Unpriced = append(res.Unpriced, li.ProductID)
			}
		}
		li.Price = q.price
	}
	return res
}

func (e *Engine) lookup(ctx context.Context, productID int64) (float64, bool) {
	resolved := false
	p, err := gateway.Call(ctx, e.guard, gateway.CollaboratorProduct, gateway.Product{}, func(ctx context.Context) (gateway.Product, error) {
		p, err := e.products.ResolveProduct(ctx, productID)
		resolved = err == nil
		return p, err
	})
	if err != nil || !resolved {
		return 0, false
	}
	return p.Price, true
}

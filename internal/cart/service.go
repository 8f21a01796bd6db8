package cart

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/domain"
	"delixmi-order-core/internal/money"
)

const maxQuantity = 99

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Add implements spec §4.2's add operation.
func (s *Service) Add(ctx context.Context, userID, productID int64, quantity int, optionIDs []int64) (domain.CartItem, error) {
	if quantity < 1 || quantity > maxQuantity {
		return domain.CartItem{}, apperr.ValidationError("quantity must be between 1 and 99")
	}

	snap, err := s.repo.LoadProduct(ctx, productID)
	if err != nil {
		if err == ErrNotFound {
			return domain.CartItem{}, apperr.NotFound(apperr.CodeProductNotFound, "product not found")
		}
		return domain.CartItem{}, apperr.Internal(err.Error())
	}
	if !snap.Product.IsAvailable {
		return domain.CartItem{}, apperr.ProductUnavailable("product is not available")
	}
	if snap.RestaurantStatus != domain.RestaurantActive {
		return domain.CartItem{}, apperr.ProductUnavailable("restaurant is not active")
	}

	options, err := s.repo.LoadModifierOptions(ctx, optionIDs)
	if err != nil {
		return domain.CartItem{}, apperr.Internal(err.Error())
	}
	if len(options) != len(uniqueInt64(optionIDs)) {
		return domain.CartItem{}, apperr.ValidationError("one or more modifier options do not exist")
	}

	if err := s.validateSelection(ctx, productID, options); err != nil {
		return domain.CartItem{}, err
	}

	priceAtAdd := snap.Product.Price
	for _, o := range options {
		priceAtAdd = priceAtAdd.Add(o.PriceDelta)
	}
	priceAtAdd = money.Round2(priceAtAdd)

	fp := fingerprint(optionIDs)

	var result domain.CartItem
	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		cartID, err := s.repo.GetOrCreateCart(ctx, tx, userID, snap.Product.RestaurantID)
		if err != nil {
			return err
		}

		existingID, existingQty, found, err := s.repo.FindMatchingItem(ctx, tx, cartID, productID, fp)
		if err != nil {
			return err
		}
		if found {
			newQty := existingQty + quantity
			if newQty > maxQuantity {
				newQty = maxQuantity
			}
			if err := s.repo.UpdateItemQuantity(ctx, tx, userID, existingID, newQty); err != nil {
				return err
			}
			result = domain.CartItem{ID: existingID, CartID: cartID, ProductID: productID, Quantity: newQty, PriceAtAdd: priceAtAdd}
			return nil
		}

		itemID, err := s.repo.InsertItem(ctx, tx, cartID, productID, quantity, priceAtAdd, fp, optionIDs)
		if err != nil {
			return err
		}
		result = domain.CartItem{ID: itemID, CartID: cartID, ProductID: productID, Quantity: quantity, PriceAtAdd: priceAtAdd}
		return nil
	})
	if err != nil {
		return domain.CartItem{}, apperr.Internal(err.Error())
	}
	return result, nil
}

// validateSelection checks, for every distinct modifier group touched by
// the options list, that the group belongs to the product and that the
// selection count satisfies min_selection <= n <= max_selection.
func (s *Service) validateSelection(ctx context.Context, productID int64, options []domain.ModifierOption) error {
	countByGroup := map[int64]int{}
	for _, o := range options {
		countByGroup[o.ModifierGroupID]++
	}
	for groupID, count := range countByGroup {
		group, err := s.repo.LoadModifierGroup(ctx, groupID)
		if err != nil {
			if err == ErrNotFound {
				return apperr.ValidationError("modifier group not found")
			}
			return apperr.Internal(err.Error())
		}
		linked, err := s.repo.ProductHasGroup(ctx, productID, groupID)
		if err != nil {
			return apperr.Internal(err.Error())
		}
		if !linked {
			return apperr.ValidationError("modifier group is not available for this product")
		}
		if count < group.MinSelection || count > group.MaxSelection {
			return apperr.ValidationError("selection count out of range for modifier group")
		}
	}
	return nil
}

// UpdateQuantity implements spec §4.2's update_quantity; quantity 0 removes
// the item (the boundary behavior spec §8 calls out explicitly).
func (s *Service) UpdateQuantity(ctx context.Context, userID, cartItemID int64, quantity int) error {
	if quantity < 0 || quantity > maxQuantity {
		return apperr.ValidationError("quantity must be between 0 and 99")
	}
	if quantity == 0 {
		return s.Remove(ctx, userID, cartItemID)
	}
	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.UpdateItemQuantity(ctx, tx, userID, cartItemID, quantity); err != nil {
			if err == ErrNotFound {
				return apperr.NotFound(apperr.CodeCartItemNotFound, "cart item not found")
			}
			return apperr.Internal(err.Error())
		}
		return nil
	})
}

func (s *Service) Remove(ctx context.Context, userID, cartItemID int64) error {
	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.DeleteItem(ctx, tx, userID, cartItemID); err != nil {
			if err == ErrNotFound {
				return apperr.NotFound(apperr.CodeCartItemNotFound, "cart item not found")
			}
			return apperr.Internal(err.Error())
		}
		return nil
	})
}

// Clear implements spec §9's resolved open question: no restaurantID means
// clear every cart the user has, atomically.
func (s *Service) Clear(ctx context.Context, userID int64, restaurantID *int64) error {
	return s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		if restaurantID == nil {
			return s.repo.ClearAll(ctx, tx, userID)
		}
		return s.repo.ClearRestaurant(ctx, tx, userID, *restaurantID)
	})
}

// CartSummary is one restaurant-grouped cart in the listing response.
type CartSummary struct {
	RestaurantID int64
	Items        []domain.CartItem
	ItemCount    int
	Subtotal     decimal.Decimal
}

// List implements spec §4.2's list operation.
func (s *Service) List(ctx context.Context, userID int64) ([]CartSummary, error) {
	carts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err.Error())
	}
	summaries := make([]CartSummary, 0, len(carts))
	for _, c := range carts {
		summary := CartSummary{RestaurantID: c.RestaurantID, Items: c.Items}
		subtotal := decimal.Zero
		count := 0
		for _, item := range c.Items {
			subtotal = subtotal.Add(item.PriceAtAdd.Mul(decimal.NewFromInt(int64(item.Quantity))))
			count += item.Quantity
		}
		summary.Subtotal = money.Round2(subtotal)
		summary.ItemCount = count
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func uniqueInt64(ids []int64) []int64 {
	seen := map[int64]struct{}{}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

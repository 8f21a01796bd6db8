// Package cart implements the Cart Aggregate (C2): per-(user, restaurant)
// baskets with price snapshotting at add time.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"delixmi-order-core/internal/domain"
	"delixmi-order-core/internal/money"
)

var ErrNotFound = errors.New("cart: not found")

// Repository is the pgx-backed persistence layer, grounded in the
// repository-struct-wrapping-a-pool idiom used throughout the example pack.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ProductSnapshot is the subset of Product/Restaurant state the cart needs
// to validate and price an add.
type ProductSnapshot struct {
	Product          domain.Product
	RestaurantStatus domain.RestaurantStatus
}

func (r *Repository) LoadProduct(ctx context.Context, productID int64) (ProductSnapshot, error) {
	var snap ProductSnapshot
	query := `
		select p.id, p.restaurant_id, p.subcategory_id, p.name, p.price, p.is_available, r.status
		from products p
		join restaurants r on r.id = p.restaurant_id
		where p.id = $1
	`
	var priceNumeric decimal.Decimal
	err := r.db.QueryRow(ctx, query, productID).Scan(
		&snap.Product.ID, &snap.Product.RestaurantID, &snap.Product.SubcategoryID,
		&snap.Product.Name, &priceNumeric, &snap.Product.IsAvailable, &snap.RestaurantStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductSnapshot{}, ErrNotFound
		}
		return ProductSnapshot{}, fmt.Errorf("cart: load product: %w", err)
	}
	snap.Product.Price = priceNumeric
	return snap, nil
}

// LoadModifierOptions returns the options in optionIDs along with the group
// they belong to, for selection-count validation.
func (r *Repository) LoadModifierOptions(ctx context.Context, optionIDs []int64) ([]domain.ModifierOption, error) {
	if len(optionIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		select id, modifier_group_id, name, price_delta, deleted_at
		from modifier_options
		where id = any($1)
	`, optionIDs)
	if err != nil {
		return nil, fmt.Errorf("cart: load modifier options: %w", err)
	}
	defer rows.Close()

	var out []domain.ModifierOption
	for rows.Next() {
		var o domain.ModifierOption
		if err := rows.Scan(&o.ID, &o.ModifierGroupID, &o.Name, &o.PriceDelta, &o.DeletedAt); err != nil {
			return nil, fmt.Errorf("cart: scan modifier option: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}

// LoadModifierGroup fetches the group's own restaurant scope and selection
// bounds for validation against the product being added.
func (r *Repository) LoadModifierGroup(ctx context.Context, groupID int64) (domain.ModifierGroup, error) {
	var g domain.ModifierGroup
	err := r.db.QueryRow(ctx, `
		select id, restaurant_id, name, min_selection, max_selection
		from modifier_groups where id = $1
	`, groupID).Scan(&g.ID, &g.RestaurantID, &g.Name, &g.MinSelection, &g.MaxSelection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ModifierGroup{}, ErrNotFound
		}
		return domain.ModifierGroup{}, fmt.Errorf("cart: load modifier group: %w", err)
	}
	return g, nil
}

// ProductHasGroup reports whether groupID is associated with productID via
// the product_modifier_groups join table.
func (r *Repository) ProductHasGroup(ctx context.Context, productID, groupID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		select exists(select 1 from product_modifier_groups where product_id=$1 and modifier_group_id=$2)
	`, productID, groupID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("cart: check product modifier group: %w", err)
	}
	return exists, nil
}

// GetOrCreateCart returns the cart id for (userID, restaurantID), creating
// it lazily on first add, per spec §3's "Cart is created lazily" lifecycle.
func (r *Repository) GetOrCreateCart(ctx context.Context, tx pgx.Tx, userID, restaurantID int64) (int64, error) {
	var cartID int64
	err := tx.QueryRow(ctx, `select id from carts where user_id=$1 and restaurant_id=$2`, userID, restaurantID).Scan(&cartID)
	if err == nil {
		return cartID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("cart: lookup cart: %w", err)
	}
	err = tx.QueryRow(ctx, `
		insert into carts (user_id, restaurant_id) values ($1, $2) returning id
	`, userID, restaurantID).Scan(&cartID)
	if err != nil {
		return 0, fmt.Errorf("cart: create cart: %w", err)
	}
	return cartID, nil
}

// FindMatchingItem looks for a cart item of the same product with the exact
// same selected-option fingerprint, returning its id and quantity if found.
func (r *Repository) FindMatchingItem(ctx context.Context, tx pgx.Tx, cartID, productID int64, optionFingerprint string) (itemID int64, quantity int, found bool, err error) {
	err = tx.QueryRow(ctx, `
		select id, quantity from cart_items
		where cart_id=$1 and product_id=$2 and option_fingerprint=$3
	`, cartID, productID, optionFingerprint).Scan(&itemID, &quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("cart: find matching item: %w", err)
	}
	return itemID, quantity, true, nil
}

func (r *Repository) InsertItem(ctx context.Context, tx pgx.Tx, cartID, productID int64, quantity int, priceAtAdd decimal.Decimal, optionFingerprint string, optionIDs []int64) (int64, error) {
	var itemID int64
	err := tx.QueryRow(ctx, `
		insert into cart_items (cart_id, product_id, quantity, price_at_add, option_fingerprint)
		values ($1,$2,$3,$4,$5) returning id
	`, cartID, productID, quantity, money.ToNumeric(priceAtAdd), optionFingerprint).Scan(&itemID)
	if err != nil {
		return 0, fmt.Errorf("cart: insert item: %w", err)
	}
	for _, optionID := range optionIDs {
		if _, err := tx.Exec(ctx, `
			insert into cart_item_modifiers (cart_item_id, modifier_option_id) values ($1,$2)
		`, itemID, optionID); err != nil {
			return 0, fmt.Errorf("cart: insert item modifier: %w", err)
		}
	}
	return itemID, nil
}

// UpdateItemQuantity mutates itemID only if it belongs to a cart owned by
// userID; any other item id returns ErrNotFound rather than touching a row
// it doesn't own.
func (r *Repository) UpdateItemQuantity(ctx context.Context, tx pgx.Tx, userID, itemID int64, quantity int) error {
	tag, err := tx.Exec(ctx, `
		update cart_items set quantity=$2
		where id=$1 and cart_id in (select id from carts where user_id=$3)
	`, itemID, quantity, userID)
	if err != nil {
		return fmt.Errorf("cart: update quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes itemID only if it belongs to a cart owned by userID.
func (r *Repository) DeleteItem(ctx context.Context, tx pgx.Tx, userID, itemID int64) error {
	if _, err := tx.Exec(ctx, `
		delete from cart_item_modifiers
		where cart_item_id=$1 and cart_item_id in (
			select ci.id from cart_items ci join carts c on c.id=ci.cart_id where c.user_id=$2
		)
	`, itemID, userID); err != nil {
		return fmt.Errorf("cart: delete item modifiers: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		delete from cart_items where id=$1 and cart_id in (select id from carts where user_id=$2)
	`, itemID, userID)
	if err != nil {
		return fmt.Errorf("cart: delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAll atomically removes every cart the user owns (spec §9 open
// question #1's resolution: no restaurant_id clears everything).
func (r *Repository) ClearAll(ctx context.Context, tx pgx.Tx, userID int64) error {
	_, err := tx.Exec(ctx, `
		delete from cart_item_modifiers where cart_item_id in (
			select ci.id from cart_items ci join carts c on c.id = ci.cart_id where c.user_id=$1
		)
	`, userID)
	if err != nil {
		return fmt.Errorf("cart: clear all modifiers: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		delete from cart_items where cart_id in (select id from carts where user_id=$1)
	`, userID); err != nil {
		return fmt.Errorf("cart: clear all items: %w", err)
	}
	if _, err := tx.Exec(ctx, `delete from carts where user_id=$1`, userID); err != nil {
		return fmt.Errorf("cart: clear all carts: %w", err)
	}
	return nil
}

// ClearRestaurant removes only the (userID, restaurantID) cart.
func (r *Repository) ClearRestaurant(ctx context.Context, tx pgx.Tx, userID, restaurantID int64) error {
	var cartID int64
	err := tx.QueryRow(ctx, `select id from carts where user_id=$1 and restaurant_id=$2`, userID, restaurantID).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cart: locate cart: %w", err)
	}
	if _, err := tx.Exec(ctx, `delete from cart_item_modifiers where cart_item_id in (select id from cart_items where cart_id=$1)`, cartID); err != nil {
		return fmt.Errorf("cart: clear modifiers: %w", err)
	}
	if _, err := tx.Exec(ctx, `delete from cart_items where cart_id=$1`, cartID); err != nil {
		return fmt.Errorf("cart: clear items: %w", err)
	}
	if _, err := tx.Exec(ctx, `delete from carts where id=$1`, cartID); err != nil {
		return fmt.Errorf("cart: clear cart: %w", err)
	}
	return nil
}

// ListByUser loads every cart the user has, grouped by restaurant, with
// items and modifiers populated.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]domain.Cart, error) {
	rows, err := r.db.Query(ctx, `select id, restaurant_id from carts where user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("cart: list carts: %w", err)
	}
	var carts []domain.Cart
	for rows.Next() {
		var c domain.Cart
		if err := rows.Scan(&c.ID, &c.RestaurantID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("cart: scan cart: %w", err)
		}
		c.UserID = userID
		carts = append(carts, c)
	}
	rows.Close()

	for i := range carts {
		items, err := r.loadItems(ctx, carts[i].ID)
		if err != nil {
			return nil, err
		}
		carts[i].Items = items
	}
	return carts, nil
}

// FindCartID resolves the cart id for (userID, restaurantID), used by the
// checkout endpoint which addresses a cart by restaurant rather than by its
// own id (spec §6's create_preference request body carries restaurantId).
func (r *Repository) FindCartID(ctx context.Context, userID, restaurantID int64) (int64, error) {
	var cartID int64
	err := r.db.QueryRow(ctx, `select id from carts where user_id=$1 and restaurant_id=$2`, userID, restaurantID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("cart: find cart id: %w", err)
	}
	return cartID, nil
}

// GetCart loads a single cart by id (used by the Order Assembler to load
// the cart that's about to be assembled into an Order).
func (r *Repository) GetCart(ctx context.Context, cartID int64) (domain.Cart, error) {
	var c domain.Cart
	err := r.db.QueryRow(ctx, `select id, user_id, restaurant_id from carts where id=$1`, cartID).Scan(&c.ID, &c.UserID, &c.RestaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cart{}, ErrNotFound
		}
		return domain.Cart{}, fmt.Errorf("cart: get cart: %w", err)
	}
	items, err := r.loadItems(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	c.Items = items
	return c, nil
}

func (r *Repository) loadItems(ctx context.Context, cartID int64) ([]domain.CartItem, error) {
	rows, err := r.db.Query(ctx, `
		select id, cart_id, product_id, quantity, price_at_add from cart_items where cart_id=$1
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart: load items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.PriceAtAdd); err != nil {
			return nil, fmt.Errorf("cart: scan item: %w", err)
		}
		items = append(items, item)
	}

	for i := range items {
		mods, err := r.loadItemModifiers(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Modifiers = mods
	}
	return items, nil
}

func (r *Repository) loadItemModifiers(ctx context.Context, itemID int64) ([]domain.CartItemModifier, error) {
	rows, err := r.db.Query(ctx, `select id, cart_item_id, modifier_option_id from cart_item_modifiers where cart_item_id=$1`, itemID)
	if err != nil {
		return nil, fmt.Errorf("cart: load item modifiers: %w", err)
	}
	defer rows.Close()

	var mods []domain.CartItemModifier
	for rows.Next() {
		var m domain.CartItemModifier
		if err := rows.Scan(&m.ID, &m.CartItemID, &m.ModifierOptionID); err != nil {
			return nil, fmt.Errorf("cart: scan item modifier: %w", err)
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func (r *Repository) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cart: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

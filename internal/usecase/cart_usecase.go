package usecase

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/rs/zerolog"
)

// CartUsecase は /cart の業務ロジックです。
// ログインユーザーとゲスト（セッション）のどちらのカートも扱う。
type CartUsecase struct {
	tx        repo.TransactionManager
	cartItems repo.CartItemRepository
	products  repo.ProductRepository
	variants  repo.VariantRepository
	log       zerolog.Logger
}

func NewCartUsecase(
	tx repo.TransactionManager,
	cartItems repo.CartItemRepository,
	products repo.ProductRepository,
	variants repo.VariantRepository,
	log zerolog.Logger,
) *CartUsecase {
	return &CartUsecase{
		tx:        tx,
		cartItems: cartItems,
		products:  products,
		variants:  variants,
		log:       log,
	}
}

type AddCartInput struct {
	ProductID int64
	VariantID *int64
	Quantity  int64
}

func (u *CartUsecase) GetCart(ctx context.Context, owner model.CartOwner) (CartOutput, error) {
	if !owner.Valid() {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.buildCart(ctx, owner)
}

// AddToCart はカートに追加（同じ商品・バリアントは数量加算）。
// 在庫は「既存数量＋追加数量」で判定する。
func (u *CartUsecase) AddToCart(ctx context.Context, owner model.CartOwner, in AddCartInput) (CartOutput, error) {
	if !owner.Valid() {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.VariantID != nil && *in.VariantID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid variant_id")
	}
	if in.Quantity < 1 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	name, stock, err := u.sellable(ctx, in.ProductID, in.VariantID)
	if err != nil {
		return CartOutput{}, err
	}

	existing, err := u.cartItems.FindLine(ctx, owner, in.ProductID, in.VariantID)
	found := err == nil
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return CartOutput{}, errDB()
	}

	newQty := in.Quantity
	if found {
		newQty += existing.Quantity
	}
	if newQty > stock {
		return CartOutput{}, errInsufficientStock(name, stock)
	}

	if found {
		if err := u.cartItems.UpdateQuantity(ctx, existing.ID, newQty); err != nil {
			return CartOutput{}, errDB()
		}
	} else {
		item := model.CartItem{
			ProductID: in.ProductID,
			VariantID: in.VariantID,
			Quantity:  newQty,
		}
		if owner.IsGuest() {
			sid := owner.SessionID
			item.SessionID = &sid
		} else {
			uid := owner.UserID
			item.UserID = &uid
		}
		if _, err := u.cartItems.Create(ctx, item); err != nil {
			return CartOutput{}, errDB()
		}
	}

	return u.buildCart(ctx, owner)
}

// 数量変更。在庫を超える場合は丸めずにエラー。
func (u *CartUsecase) UpdateQuantity(ctx context.Context, owner model.CartOwner, cartItemID int64, qty int64) (CartOutput, error) {
	if !owner.Valid() {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if qty < 1 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "quantity must be >= 1")
	}

	item, err := u.cartItems.FindByIDForOwner(ctx, cartItemID, owner)
	if errors.Is(err, repo.ErrNotFound) {
		return CartOutput{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	if err != nil {
		return CartOutput{}, errDB()
	}

	name, stock, err := u.sellable(ctx, item.ProductID, item.VariantID)
	if err != nil {
		return CartOutput{}, err
	}
	if qty > stock {
		return CartOutput{}, errInsufficientStock(name, stock)
	}

	if err := u.cartItems.UpdateQuantity(ctx, cartItemID, qty); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartOutput{}, NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return CartOutput{}, errDB()
	}
	return u.buildCart(ctx, owner)
}

// 明細削除
func (u *CartUsecase) RemoveItem(ctx context.Context, owner model.CartOwner, cartItemID int64) (CartOutput, error) {
	if !owner.Valid() {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	//他人の明細は「存在しない扱い」
	if _, err := u.cartItems.FindByIDForOwner(ctx, cartItemID, owner); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartOutput{}, NewHTTPError(http.StatusNotFound, "cart item not found")
		}
		return CartOutput{}, errDB()
	}
	if err := u.cartItems.DeleteByID(ctx, cartItemID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return CartOutput{}, errDB()
	}
	return u.buildCart(ctx, owner)
}

func (u *CartUsecase) ClearCart(ctx context.Context, owner model.CartOwner) error {
	if !owner.Valid() {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.cartItems.DeleteByOwner(ctx, owner); err != nil {
		return errDB()
	}
	return nil
}

// ログイン時にゲストのカートをユーザーへ統合する。
// 同じ(product, variant)は数量を合算してゲスト行を削除、それ以外は付け替え。
func (u *CartUsecase) MergeGuestCart(ctx context.Context, sessionID string, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	user := model.UserOwner(userID)
	if sessionID == "" {
		return u.buildCart(ctx, user)
	}
	guest := model.GuestOwner(sessionID)

	merged := 0
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		lines, err := r.CartItems().ListByOwner(ctx, guest)
		if err != nil {
			return errDB()
		}
		for _, gl := range lines {
			ul, err := r.CartItems().FindLine(ctx, user, gl.ProductID, gl.VariantID)
			switch {
			case err == nil:
				if err := r.CartItems().UpdateQuantity(ctx, ul.ID, ul.Quantity+gl.Quantity); err != nil {
					return errDB()
				}
				if err := r.CartItems().DeleteByID(ctx, gl.ID); err != nil {
					return errDB()
				}
			case errors.Is(err, repo.ErrNotFound):
				if err := r.CartItems().Reparent(ctx, gl.ID, userID); err != nil {
					return errDB()
				}
			default:
				return errDB()
			}
			merged++
		}
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}

	if merged > 0 {
		u.log.Info().Int64("user_id", userID).Int("lines", merged).Msg("guest cart merged")
	}
	return u.buildCart(ctx, user)
}

// 商品（とバリアント）が買える状態か確認して、表示名と在庫を返す
func (u *CartUsecase) sellable(ctx context.Context, productID int64, variantID *int64) (string, int64, error) {
	p, err := u.products.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", 0, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return "", 0, errDB()
	}
	if !p.IsActive {
		return "", 0, errUnavailable(p.Name)
	}
	if variantID == nil {
		return p.Name, p.StockQuantity, nil
	}

	v, err := u.variants.FindByID(ctx, *variantID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && v.ProductID != p.ID) {
		return "", 0, NewHTTPError(http.StatusNotFound, "variant not found")
	}
	if err != nil {
		return "", 0, errDB()
	}
	name := p.Name + " (" + v.Name + ")"
	if !v.IsActive {
		return "", 0, errUnavailable(name)
	}
	return name, v.StockQuantity, nil
}

func (u *CartUsecase) buildCart(ctx context.Context, owner model.CartOwner) (CartOutput, error) {
	items, err := u.cartItems.ListByOwner(ctx, owner)
	if err != nil {
		return CartOutput{}, errDB()
	}
	out, err := priceCart(ctx, u.products, u.variants, items)
	if err != nil {
		return CartOutput{}, errDB()
	}
	return out, nil
}

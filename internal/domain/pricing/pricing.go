package pricing

import (
	"errors"
	"sort"
	"strings"

	"flowstack/internal/domain/model"
)

var (
	// メニューに存在しない商品がカートに残っている
	ErrUnknownItem = errors.New("unknown item")

	// 数量が0以下
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Line は見積もりの1行（小計つき）。
type Line struct {
	ItemName  string
	UnitPrice int64
	Quantity  int64
	Subtotal  int64
}

// Price はカートを現在のメニューに対して検証して合計を出す純関数。
// 商品は選択時でなく確定時のメニューで再検証する（その間にメニューが変わりうる）。
// 単価はカート行のスナップショットを使う。
func Price(menu map[string]int64, cart []model.CartLine) ([]Line, int64, error) {
	lines := make([]Line, 0, len(cart))
	var total int64 = 0

	for _, cl := range cart {
		if cl.Quantity <= 0 {
			return nil, 0, ErrInvalidQuantity
		}
		if _, ok := menu[cl.ItemName]; !ok {
			return nil, 0, ErrUnknownItem
		}

		sub := cl.UnitPrice * cl.Quantity
		lines = append(lines, Line{
			ItemName:  cl.ItemName,
			UnitPrice: cl.UnitPrice,
			Quantity:  cl.Quantity,
			Subtotal:  sub,
		})
		total += sub
	}

	return lines, total, nil
}

// Merge は同じ商品の行を1本にまとめつつカートへ追加する。
func Merge(cart []model.CartLine, itemName string, unitPrice int64, quantity int64) []model.CartLine {
	for i, cl := range cart {
		if strings.EqualFold(cl.ItemName, itemName) {
			cart[i].Quantity += quantity
			return cart
		}
	}
	return append(cart, model.CartLine{ItemName: itemName, UnitPrice: unitPrice, Quantity: quantity})
}

// MatchItem はメニュー名と入力を相互の部分一致（大文字小文字無視）で突き合わせる。
// 戻り値は一致したメニュー名（登録時の表記のまま）。
func MatchItem(menu map[string]int64, input string) []string {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return nil
	}

	matches := make([]string, 0, 2)
	for name := range menu {
		ln := strings.ToLower(name)
		if strings.Contains(ln, in) || strings.Contains(in, ln) {
			matches = append(matches, name)
		}
	}

	// mapの列挙順に依存しないよう返答用に揃える
	sort.Strings(matches)
	return matches
}

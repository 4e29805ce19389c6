package groupbuy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ParseItemsYAML parses the EditItems dialog's menu textarea:
// one "name: price" per non-comment line. Rejects the whole submission
// on any malformed line rather than silently skipping it, per Design
// Notes §9.
func ParseItemsYAML(src string) (map[string]decimal.Decimal, error) {
	items := make(map[string]decimal.Decimal)

	for _, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, ValidationErrorf("items", "格式錯誤：%s", line)
		}

		name := strings.TrimSpace(parts[0])
		priceStr := strings.TrimSpace(parts[1])
		if name == "" {
			return nil, ValidationErrorf("items", "商品名稱不能為空")
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, ValidationErrorf("items", "價格格式錯誤：%s", priceStr)
		}
		if price.IsNegative() {
			return nil, ValidationErrorf("items", "價格不能為負數")
		}

		items[name] = price
	}

	return items, nil
}

// ItemsToYAML renders a menu back into the textarea format used as a
// dialog default, e.g. when opening EditItems pre-filled with the
// current menu.
func ItemsToYAML(items map[string]decimal.Decimal) string {
	if len(items) == 1 {
		if _, ok := items[PlaceholderItemName]; ok {
			return fmt.Sprintf("# %s: 10\n", PlaceholderItemName)
		}
	}

	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\n", name, items[name].String())
	}
	return b.String()
}

// ParseMetadataYAML parses the Create dialog's free-form "其他資訊"
// textarea as a generic YAML mapping of string to string.
func ParseMetadataYAML(src string) (map[string]string, error) {
	if strings.TrimSpace(src) == "" {
		return map[string]string{}, nil
	}
	var out map[string]string
	if err := yaml.Unmarshal([]byte(src), &out); err != nil {
		return nil, ValidationErrorf("metadata", "YAML 格式錯誤: %v", err)
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}

// ParseAdjustmentsYAML parses the AdjustShortage dialog's textarea:
// one "order_id: new_quantity" per non-comment line. Unlike
// ParseItemsYAML, a line that doesn't split into two parts is skipped
// rather than rejected — it mirrors the original's tolerance for blank
// separator lines between comment blocks, but a present quantity must
// still be a valid non-negative integer.
func ParseAdjustmentsYAML(src string) (map[string]int, error) {
	out := make(map[string]int)

	for _, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		orderID := strings.TrimSpace(parts[0])
		qtyStr := strings.TrimSpace(parts[1])
		if orderID == "" {
			continue
		}

		qty, err := strconv.Atoi(qtyStr)
		if err != nil {
			return nil, ValidationErrorf("adjustments", "數量必須是整數：%s", qtyStr)
		}
		if qty < 0 {
			return nil, ValidationErrorf("adjustments", "數量不能為負數")
		}

		out[orderID] = qty
	}

	return out, nil
}

// Package sticker is the self-contained /sticker subsystem: a
// keyword/category index built once at startup from configured
// CSV/JSON sources, searched per slash command. It never imports, and
// is never imported by, internal/groupbuy — matched on sticker.rs and
// handlers/sticker.rs, with the DB-backed search folded into an
// in-memory index since the index is small and rebuilt wholesale on
// every reload (see DESIGN.md).
package sticker

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strings"

	"github.com/lekoOwO/groupbuy-bot/internal/config"
)

// Sticker is one entry of the index.
type Sticker struct {
	Name     string
	ImageURL string
	Category string
}

// URLHash is the first eight hex digits of the image URL's 32-bit
// FNV-1a hash, used to disambiguate same-named stickers in a select
// list.
func (s Sticker) URLHash() string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s.ImageURL))
	return fmt.Sprintf("%08x", h.Sum32())
}

// DisplayName is "[category] name (hash)", the label shown in the
// picker's select options.
func (s Sticker) DisplayName() string {
	return fmt.Sprintf("[%s] %s (%s)", s.Category, s.Name, s.URLHash())
}

// Index is an immutable, in-memory snapshot of every configured
// sticker. Safe for concurrent reads; rebuild and swap to reload.
type Index struct {
	stickers []Sticker
}

// LoadFromConfig reads every CSV and JSON source named in cfg and
// builds an Index. A source failing to parse fails the whole load,
// mirroring the source's eager, all-or-nothing startup load.
func LoadFromConfig(cfg config.StickersConfig) (*Index, error) {
	var all []Sticker
	for _, cat := range cfg.Categories {
		for _, path := range cat.CSV {
			v, err := loadCSVFile(path, cat.Name)
			if err != nil {
				return nil, fmt.Errorf("載入 CSV 檔案失敗: %s: %w", path, err)
			}
			all = append(all, v...)
		}
		for _, path := range cat.JSON {
			v, err := loadJSONFile(path, cat.Name)
			if err != nil {
				return nil, fmt.Errorf("載入 JSON 檔案失敗: %s: %w", path, err)
			}
			all = append(all, v...)
		}
	}
	return &Index{stickers: all}, nil
}

func loadCSVFile(path, category string) ([]Sticker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("無法讀取 CSV 檔案: %w", err)
	}
	defer f.Close()
	return parseCSV(f, category)
}

func parseCSV(r *os.File, category string) ([]Sticker, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("無法讀取 CSV header: %w", err)
	}

	nameIdx := indexOf(headers, "名稱")
	if nameIdx < 0 {
		return nil, fmt.Errorf("CSV 檔案中找不到「名稱」欄位")
	}
	imageIdx := indexOf(headers, "圖片")
	if imageIdx < 0 {
		imageIdx = indexOf(headers, "圖片網址")
	}
	if imageIdx < 0 {
		imageIdx = indexOf(headers, "i.imgur")
	}
	if imageIdx < 0 {
		return nil, fmt.Errorf("CSV 檔案中找不到「圖片」、「圖片網址」或「i.imgur」欄位")
	}

	var stickers []Sticker
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if nameIdx >= len(record) || imageIdx >= len(record) {
			continue
		}
		name := strings.TrimSpace(record[nameIdx])
		imageURL := strings.TrimSpace(record[imageIdx])
		if name == "" || imageURL == "" {
			continue
		}
		stickers = append(stickers, Sticker{Name: name, ImageURL: imageURL, Category: category})
	}
	return stickers, nil
}

func indexOf(headers []string, target string) int {
	for i, h := range headers {
		if h == target {
			return i
		}
	}
	return -1
}

func loadJSONFile(path, category string) ([]Sticker, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("無法讀取 JSON 檔案: %w", err)
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("解析 JSON 檔案時發生錯誤: %w", err)
	}
	stickers := make([]Sticker, 0, len(data))
	for name, imageURL := range data {
		stickers = append(stickers, Sticker{Name: name, ImageURL: imageURL, Category: category})
	}
	sort.Slice(stickers, func(i, j int) bool { return stickers[i].Name < stickers[j].Name })
	return stickers, nil
}

// Count is the total number of indexed stickers.
func (idx *Index) Count() int {
	return len(idx.stickers)
}

// Categories lists every distinct category name, sorted.
func (idx *Index) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range idx.stickers {
		if !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	sort.Strings(out)
	return out
}

// CategoryStats counts stickers per category.
func (idx *Index) CategoryStats() map[string]int {
	stats := make(map[string]int)
	for _, s := range idx.stickers {
		stats[s.Category]++
	}
	return stats
}

// parseQuery splits "category: kw1 kw2 -exclude" into its category
// filter, AND'd include keywords, and excluded keywords, matching
// sticker.rs's parse_query.
func parseQuery(query string) (category string, include, exclude []string) {
	query = strings.TrimSpace(query)

	keywordPart := query
	if colon := strings.Index(query, ":"); colon >= 0 {
		category = strings.TrimSpace(query[:colon])
		keywordPart = strings.TrimSpace(query[colon+1:])
	}

	for _, tok := range strings.Fields(keywordPart) {
		if strings.HasPrefix(tok, "-") {
			if excluded := strings.TrimPrefix(tok, "-"); excluded != "" {
				exclude = append(exclude, strings.ToLower(excluded))
			}
		} else {
			include = append(include, strings.ToLower(tok))
		}
	}
	return category, include, exclude
}

// Search supports "cat: kw1 kw2 -exclude" syntax: every include
// keyword must substring-match the name (case-insensitive), every
// exclude keyword must not, and category (from the query prefix or
// the categories filter) must match exactly. Results are capped at
// limit; limit <= 0 means unbounded.
func (idx *Index) Search(query string, categories []string, limit int) []Sticker {
	queryCategory, include, exclude := parseQuery(query)

	var results []Sticker
	for _, s := range idx.stickers {
		if queryCategory != "" && s.Category != queryCategory {
			continue
		}
		if len(categories) > 0 && !containsStr(categories, s.Category) {
			continue
		}
		lowerName := strings.ToLower(s.Name)
		matched := true
		for _, kw := range include {
			if !strings.Contains(lowerName, kw) {
				matched = false
				break
			}
		}
		if matched {
			for _, kw := range exclude {
				if strings.Contains(lowerName, kw) {
					matched = false
					break
				}
			}
		}
		if !matched {
			continue
		}
		results = append(results, s)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

func containsStr(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

package sticker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoOwO/groupbuy-bot/internal/config"
)

func TestURLHashAndDisplayName(t *testing.T) {
	s := Sticker{Name: "測試", ImageURL: "https://i.imgur.com/XB4MwpR.jpg", Category: "測試分類"}
	hash := s.URLHash()
	assert.Len(t, hash, 8)
	assert.Equal(t, "[測試分類] 測試 ("+hash+")", s.DisplayName())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCSV_ImageColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "test.csv", "名稱,圖片,其他欄位\n測試貼圖1,https://example.com/test1.jpg,test\n測試貼圖2,https://example.com/test2.jpg,test\n")

	stickers, err := loadCSVFile(path, "其他")
	require.NoError(t, err)
	require.Len(t, stickers, 2)
	assert.Equal(t, "測試貼圖1", stickers[0].Name)
	assert.Equal(t, "https://example.com/test1.jpg", stickers[0].ImageURL)
	assert.Equal(t, "其他", stickers[0].Category)
}

func TestLoadCSV_ImgurColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "test.csv", "日期,流水號,名稱,維基集數,ESFIO,無文字版本,imgur,i.imgur\n"+
		"191111,SS0001,你為什麼不問問神奇海螺呢,42-A,S3E03,,https://imgur.com/XB4MwpR,https://i.imgur.com/XB4MwpR.jpg\n")

	stickers, err := loadCSVFile(path, "測試分類")
	require.NoError(t, err)
	require.Len(t, stickers, 1)
	assert.Equal(t, "你為什麼不問問神奇海螺呢", stickers[0].Name)
	assert.Equal(t, "https://i.imgur.com/XB4MwpR.jpg", stickers[0].ImageURL)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "test.json", `{"你很廉價": "https://i.imgur.com/gQRSLIx.png", "測試貼圖": "https://example.com/test.png"}`)

	stickers, err := loadJSONFile(path, "JSON分類")
	require.NoError(t, err)
	require.Len(t, stickers, 2)
	for _, s := range stickers {
		assert.Equal(t, "JSON分類", s.Category)
	}
}

func TestLoadFromConfig(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "a.csv", "名稱,圖片\n測試海螺,https://example.com/1.jpg\n")
	jsonPath := writeFile(t, dir, "b.json", `{"派大星": "https://example.com/2.jpg"}`)

	cfg := config.StickersConfig{Categories: []config.StickerCategoryConfig{
		{Name: "分類A", CSV: []string{csvPath}},
		{Name: "分類B", JSON: []string{jsonPath}},
	}}

	idx, err := LoadFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Count())
	assert.Equal(t, []string{"分類A", "分類B"}, idx.Categories())
}

func sampleIndex() *Index {
	return &Index{stickers: []Sticker{
		{Name: "開心派大星", ImageURL: "https://example.com/1.jpg", Category: "海綿寶寶"},
		{Name: "難過派大星", ImageURL: "https://example.com/2.jpg", Category: "海綿寶寶"},
		{Name: "開心章魚哥", ImageURL: "https://example.com/3.jpg", Category: "海綿寶寶"},
		{Name: "開心小新", ImageURL: "https://example.com/4.jpg", Category: "蠟筆小新"},
	}}
}

func TestSearch_MultiKeywordAnd(t *testing.T) {
	idx := sampleIndex()
	results := idx.Search("開心 派大星", nil, 10)
	require.Len(t, results, 1)
	assert.Equal(t, "開心派大星", results[0].Name)
}

func TestSearch_CategoryPrefix(t *testing.T) {
	idx := sampleIndex()
	results := idx.Search("海綿寶寶: 開心", nil, 10)
	assert.Len(t, results, 2)
	for _, s := range results {
		assert.Equal(t, "海綿寶寶", s.Category)
	}
}

func TestSearch_Exclude(t *testing.T) {
	idx := sampleIndex()
	results := idx.Search("開心 -派大星", nil, 10)
	for _, s := range results {
		assert.NotContains(t, s.Name, "派大星")
	}
}

func TestSearch_CategoriesFilterAndLimit(t *testing.T) {
	idx := sampleIndex()
	results := idx.Search("", []string{"蠟筆小新"}, 10)
	require.Len(t, results, 1)
	assert.Equal(t, "開心小新", results[0].Name)

	limited := idx.Search("", nil, 2)
	assert.Len(t, limited, 2)
}

func TestCategoryStats(t *testing.T) {
	idx := sampleIndex()
	stats := idx.CategoryStats()
	assert.Equal(t, 3, stats["海綿寶寶"])
	assert.Equal(t, 1, stats["蠟筆小新"])
}

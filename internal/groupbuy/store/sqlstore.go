package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
)

//go:embed schema.sql
var embeddedSchema string

// Driver selects the backing SQL dialect.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// sqlStore is a gorm-backed Store. It never uses gorm's high-level
// model CRUD for group_buys/group_buy_orders — only db.Exec/db.Raw —
// so every conditional UPDATE's affected-row count is exact.
type sqlStore struct {
	db *gorm.DB
}

// Open connects to dsn using driver, applies the embedded schema (or
// the file at schemaFileOverride if set, mirroring the source's
// DB_SCHEMA_FILE escape hatch), and tunes the connection pool.
func Open(driver Driver, dsn string, schemaFileOverride string) (Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		// Connection-string pragmas apply to every pooled connection,
		// not only to the one a post-open PRAGMA statement runs on.
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dialector = sqlite.Open(dsn + sep + "_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("無法連接到資料庫: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(5)

	if driver != DriverPostgres {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, fmt.Errorf("無法設定 pragma: %w", err)
			}
		}
	}

	s := &sqlStore{db: db}
	if err := s.initSchema(schemaFileOverride); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) initSchema(schemaFileOverride string) error {
	schema := embeddedSchema
	if schemaFileOverride != "" {
		if b, err := os.ReadFile(schemaFileOverride); err == nil {
			schema = string(b)
		}
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("資料表結構初始化失敗: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func (s *sqlStore) CreateSession(ctx context.Context, sess *groupbuy.Session) error {
	metadataJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return err
	}
	itemsJSON, err := marshalItems(sess.Items)
	if err != nil {
		return err
	}

	createdAt, updatedAt := sess.CreatedAt.UTC().Format(time.RFC3339), sess.UpdatedAt.UTC().Format(time.RFC3339)
	details, _ := json.Marshal(map[string]any{
		"merchant_name": sess.MerchantName,
		"action":        "create",
		"version":       sess.Version,
	})

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			`INSERT INTO group_buys (
				id, creator_id, creator_username, channel_id, post_id,
				merchant_name, description, metadata, items, status,
				version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.CreatorID, sess.CreatorUsername, sess.ChannelID, sess.PostID,
			sess.MerchantName, sess.Description, string(metadataJSON), string(itemsJSON), string(sess.Status),
			sess.Version, createdAt, updatedAt,
		).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "建立團購失敗")
		}
		return logActionTx(tx, sess.ID, sess.CreatorID, sess.CreatorUsername, "create", string(details))
	})
}

type sessionRow struct {
	ID              string
	CreatorID       string
	CreatorUsername string
	ChannelID       string
	PostID          *string
	MerchantName    string
	Description     *string
	Metadata        string
	Items           string
	Status          string
	Version         int
	CreatedAt       string
	UpdatedAt       string
}

func (s *sqlStore) GetSession(ctx context.Context, id string) (*groupbuy.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, creator_id, creator_username, channel_id, post_id,
		        merchant_name, description, metadata, items, status,
		        version, created_at, updated_at
		 FROM group_buys WHERE id = ?`, id,
	).Scan(&row).Error
	if err != nil {
		return nil, groupbuy.UpstreamErrorf(err, "取得團購資料失敗")
	}
	if row.ID == "" {
		return nil, nil
	}
	return rowToSession(row)
}

func rowToSession(row sessionRow) (*groupbuy.Session, error) {
	metadata := map[string]string{}
	_ = json.Unmarshal([]byte(row.Metadata), &metadata)

	items, err := unmarshalItems(row.Items)
	if err != nil {
		return nil, groupbuy.IntegrityErrorf("無法解析團購品項: %v", err)
	}

	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return nil, groupbuy.IntegrityErrorf("無法解析建立時間: %v", err)
	}
	updatedAt, err := time.Parse(time.RFC3339, row.UpdatedAt)
	if err != nil {
		return nil, groupbuy.IntegrityErrorf("無法解析更新時間: %v", err)
	}

	return &groupbuy.Session{
		ID:              row.ID,
		CreatorID:       row.CreatorID,
		CreatorUsername: row.CreatorUsername,
		ChannelID:       row.ChannelID,
		PostID:          row.PostID,
		MerchantName:    row.MerchantName,
		Description:     row.Description,
		Metadata:        metadata,
		Items:           items,
		Status:          groupbuy.ParseStatus(row.Status),
		Version:         row.Version,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func marshalItems(items map[string]decimal.Decimal) ([]byte, error) {
	out := make(map[string]string, len(items))
	for k, v := range items {
		out[k] = v.String()
	}
	return json.Marshal(out)
}

func unmarshalItems(raw string) (map[string]decimal.Decimal, error) {
	var strItems map[string]string
	if err := json.Unmarshal([]byte(raw), &strItems); err != nil {
		return nil, err
	}
	items := make(map[string]decimal.Decimal, len(strItems))
	for k, v := range strItems {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		items[k] = d
	}
	return items, nil
}

func (s *sqlStore) UpdateItems(ctx context.Context, id string, items map[string]decimal.Decimal, expectedVersion int, actorID, actorUsername string) error {
	itemsJSON, err := marshalItems(items)
	if err != nil {
		return err
	}

	details, _ := json.Marshal(map[string]any{
		"items_count": len(items),
		"action":      "update_items",
		"version":     expectedVersion,
	})

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE group_buys
			 SET items = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ? AND status = 'active'`,
			string(itemsJSON), now(), id, expectedVersion,
		)
		if result.Error != nil {
			return groupbuy.UpstreamErrorf(result.Error, "更新品項失敗")
		}
		if result.RowsAffected == 0 {
			return groupbuy.VersionConflictError()
		}
		return logActionTx(tx, id, actorID, actorUsername, "update_items", string(details))
	})
}

func (s *sqlStore) UpdatePostID(ctx context.Context, id, postID string) error {
	result := s.db.WithContext(ctx).Exec(
		`UPDATE group_buys SET post_id = ?, updated_at = ? WHERE id = ? AND post_id IS NULL`,
		postID, now(), id,
	)
	if result.Error != nil {
		return groupbuy.UpstreamErrorf(result.Error, "更新 post_id 失敗")
	}
	if result.RowsAffected == 0 {
		// Either the session doesn't exist, or post_id is already bound
		// (idempotent no-op per the one-shot invariant) — distinguish
		// by re-reading.
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if sess == nil {
			return groupbuy.NotFoundError("找不到該團購")
		}
	}
	return nil
}

func (s *sqlStore) UpdateStatus(ctx context.Context, id string, status groupbuy.Status, expectedVersion int, actorID, actorUsername string) error {
	action := fmt.Sprintf("update_status_%s", status)
	details, _ := json.Marshal(map[string]any{
		"new_status": string(status),
		"action":     action,
		"version":    expectedVersion,
	})

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE group_buys SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
			string(status), now(), id, expectedVersion,
		)
		if result.Error != nil {
			return groupbuy.UpstreamErrorf(result.Error, "更新狀態失敗")
		}
		if result.RowsAffected == 0 {
			return groupbuy.VersionConflictError()
		}
		return logActionTx(tx, id, actorID, actorUsername, action, string(details))
	})
}

// CreateOrder inserts the order only if the session is still active,
// checked and written atomically by a conditional INSERT ... WHERE
// EXISTS rather than a separate SELECT-then-INSERT — a concurrent
// UpdateStatus closing the session can no longer land between the
// check and the write.
func (s *sqlStore) CreateOrder(ctx context.Context, order *groupbuy.Order) error {
	createdAt := order.CreatedAt.UTC().Format(time.RFC3339)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`INSERT INTO group_buy_orders (
				id, group_buy_id, registrar_id, registrar_username,
				buyer_id, buyer_username, item_name, quantity,
				original_quantity, unit_price, created_at
			)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
			WHERE EXISTS (SELECT 1 FROM group_buys WHERE id = ? AND status = 'active')`,
			order.ID, order.SessionID, order.RegistrarID, order.RegistrarUsername,
			order.BuyerID, order.BuyerUsername, order.ItemName, order.Quantity,
			order.OriginalQuantity, order.UnitPrice.String(), createdAt,
			order.SessionID,
		)
		if result.Error != nil {
			return groupbuy.UpstreamErrorf(result.Error, "新增訂單失敗")
		}
		if result.RowsAffected == 0 {
			var status string
			if err := tx.Raw(`SELECT status FROM group_buys WHERE id = ?`, order.SessionID).Scan(&status).Error; err != nil {
				return groupbuy.UpstreamErrorf(err, "取得團購狀態失敗")
			}
			if status == "" {
				return groupbuy.NotFoundError("找不到該團購")
			}
			return groupbuy.PreconditionFailedError("團購已截止，無法登記")
		}

		var version int
		_ = tx.Raw(`SELECT version FROM group_buys WHERE id = ?`, order.SessionID).Scan(&version).Error

		details, _ := json.Marshal(map[string]any{
			"buyer":    order.BuyerUsername,
			"item":     order.ItemName,
			"quantity": order.Quantity,
			"action":   "register",
			"version":  version,
		})
		return logActionTx(tx, order.SessionID, order.RegistrarID, order.RegistrarUsername, "register", string(details))
	})
}

type orderRow struct {
	ID                string
	GroupBuyID        string `gorm:"column:group_buy_id"`
	RegistrarID       string
	RegistrarUsername string
	BuyerID           string
	BuyerUsername     string
	ItemName          string
	Quantity          int
	OriginalQuantity  *int
	UnitPrice         string
	CreatedAt         string
}

func rowToOrder(row orderRow) (*groupbuy.Order, error) {
	price, err := decimal.NewFromString(row.UnitPrice)
	if err != nil {
		return nil, groupbuy.IntegrityErrorf("無法解析訂單單價: %v", err)
	}
	createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return nil, groupbuy.IntegrityErrorf("無法解析訂單時間: %v", err)
	}
	return &groupbuy.Order{
		ID:                row.ID,
		SessionID:         row.GroupBuyID,
		RegistrarID:       row.RegistrarID,
		RegistrarUsername: row.RegistrarUsername,
		BuyerID:           row.BuyerID,
		BuyerUsername:     row.BuyerUsername,
		ItemName:          row.ItemName,
		Quantity:          row.Quantity,
		OriginalQuantity:  row.OriginalQuantity,
		UnitPrice:         price,
		CreatedAt:         createdAt,
	}, nil
}

func (s *sqlStore) queryOrders(ctx context.Context, query string, args ...any) ([]*groupbuy.Order, error) {
	var rows []orderRow
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, groupbuy.UpstreamErrorf(err, "取得訂單失敗")
	}
	orders := make([]*groupbuy.Order, 0, len(rows))
	for _, r := range rows {
		o, err := rowToOrder(r)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *sqlStore) GetOrdersBySession(ctx context.Context, sessionID string) ([]*groupbuy.Order, error) {
	return s.queryOrders(ctx,
		`SELECT id, group_buy_id, registrar_id, registrar_username,
		        buyer_id, buyer_username, item_name, quantity,
		        original_quantity, unit_price, created_at
		 FROM group_buy_orders WHERE group_buy_id = ? ORDER BY created_at ASC`, sessionID)
}

func (s *sqlStore) GetBuyerOrders(ctx context.Context, sessionID, buyerID string) ([]*groupbuy.Order, error) {
	return s.queryOrders(ctx,
		`SELECT id, group_buy_id, registrar_id, registrar_username,
		        buyer_id, buyer_username, item_name, quantity,
		        original_quantity, unit_price, created_at
		 FROM group_buy_orders WHERE group_buy_id = ? AND buyer_id = ? ORDER BY created_at ASC`, sessionID, buyerID)
}

func (s *sqlStore) DeleteBuyerItemOrders(ctx context.Context, sessionID, buyerID, itemName, actorID, actorUsername string) (int64, error) {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`DELETE FROM group_buy_orders WHERE group_buy_id = ? AND buyer_id = ? AND item_name = ?`,
			sessionID, buyerID, itemName,
		)
		if result.Error != nil {
			return groupbuy.UpstreamErrorf(result.Error, "刪除登記失敗")
		}
		affected = result.RowsAffected

		var version int
		_ = tx.Raw(`SELECT version FROM group_buys WHERE id = ?`, sessionID).Scan(&version).Error
		details, _ := json.Marshal(map[string]any{
			"buyer_id":  buyerID,
			"item_name": itemName,
			"action":    "delete_registration",
			"version":   version,
		})
		return logActionTx(tx, sessionID, actorID, actorUsername, "delete_registration", string(details))
	})
	return affected, err
}

func (s *sqlStore) DeleteOrdersForBuyer(ctx context.Context, sessionID, buyerID, actorID, actorUsername string) (int64, error) {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`DELETE FROM group_buy_orders WHERE group_buy_id = ? AND buyer_id = ?`,
			sessionID, buyerID,
		)
		if result.Error != nil {
			return groupbuy.UpstreamErrorf(result.Error, "取消登記失敗")
		}
		affected = result.RowsAffected

		var version int
		_ = tx.Raw(`SELECT version FROM group_buys WHERE id = ?`, sessionID).Scan(&version).Error
		details, _ := json.Marshal(map[string]any{
			"buyer_id": buyerID,
			"action":   "cancel_all_registrations",
			"version":  version,
		})
		return logActionTx(tx, sessionID, actorID, actorUsername, "cancel_all_registrations", string(details))
	})
	return affected, err
}

func (s *sqlStore) AdjustSingleOrder(ctx context.Context, orderID string, newQuantity int, adjusterID, adjusterUsername string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row orderRow
		if err := tx.Raw(
			`SELECT id, group_buy_id, registrar_id, registrar_username,
			        buyer_id, buyer_username, item_name, quantity,
			        original_quantity, unit_price, created_at
			 FROM group_buy_orders WHERE id = ?`, orderID,
		).Scan(&row).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "取得訂單失敗")
		}
		if row.ID == "" {
			return groupbuy.NotFoundError("找不到該訂單")
		}

		var status string
		if err := tx.Raw(`SELECT status FROM group_buys WHERE id = ?`, row.GroupBuyID).Scan(&status).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "取得團購狀態失敗")
		}
		if status != string(groupbuy.StatusClosed) {
			return groupbuy.PreconditionFailedError("只能在團購截止後調整缺貨")
		}

		oldQty := row.Quantity
		origQty := oldQty
		if row.OriginalQuantity != nil {
			origQty = *row.OriginalQuantity
		}

		if err := tx.Exec(
			`UPDATE group_buy_orders SET quantity = ?, original_quantity = ? WHERE id = ?`,
			newQuantity, origQty, orderID,
		).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "更新訂單數量失敗")
		}

		ts := now()
		if err := tx.Exec(
			`INSERT INTO shortage_adjustments (
				group_buy_id, order_id, adjuster_id, adjuster_username,
				item_name, buyer_id, buyer_username, old_quantity, new_quantity, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.GroupBuyID, orderID, adjusterID, adjusterUsername,
			row.ItemName, row.BuyerID, row.BuyerUsername, oldQty, newQuantity, ts,
		).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "寫入調整紀錄失敗")
		}

		var version int
		_ = tx.Raw(`SELECT version FROM group_buys WHERE id = ?`, row.GroupBuyID).Scan(&version).Error
		details, _ := json.Marshal(map[string]any{
			"order_id":     orderID,
			"buyer":        row.BuyerUsername,
			"item":         row.ItemName,
			"old_quantity": oldQty,
			"new_quantity": newQuantity,
			"action":       "adjust_shortage",
			"version":      version,
		})
		if err := tx.Exec(
			`INSERT INTO group_buy_logs (group_buy_id, user_id, username, action, details, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			row.GroupBuyID, adjusterID, adjusterUsername, "adjust_shortage", string(details), ts,
		).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "寫入操作紀錄失敗")
		}

		return nil
	})
}

func (s *sqlStore) AdjustOrdersBatch(ctx context.Context, sessionID, itemName string, adjustments map[string]int, adjusterID, adjusterUsername string) ([]groupbuy.AdjustmentRecord, error) {
	var records []groupbuy.AdjustmentRecord

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var status string
		if err := tx.Raw(`SELECT status FROM group_buys WHERE id = ?`, sessionID).Scan(&status).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "取得團購狀態失敗")
		}
		if status != string(groupbuy.StatusClosed) {
			return groupbuy.PreconditionFailedError("只能在團購截止後調整缺貨")
		}

		var rows []orderRow
		if err := tx.Raw(
			`SELECT id, group_buy_id, registrar_id, registrar_username,
			        buyer_id, buyer_username, item_name, quantity,
			        original_quantity, unit_price, created_at
			 FROM group_buy_orders WHERE group_buy_id = ? AND item_name = ?`, sessionID, itemName,
		).Scan(&rows).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "取得訂單失敗")
		}

		ts := now()
		for _, row := range rows {
			newQty, ok := adjustments[row.BuyerUsername]
			if !ok {
				continue
			}
			oldQty := row.Quantity
			origQty := oldQty
			if row.OriginalQuantity != nil {
				origQty = *row.OriginalQuantity
			}

			if err := tx.Exec(
				`UPDATE group_buy_orders SET quantity = ?, original_quantity = ? WHERE id = ?`,
				newQty, origQty, row.ID,
			).Error; err != nil {
				return groupbuy.UpstreamErrorf(err, "更新訂單數量失敗")
			}

			if err := tx.Exec(
				`INSERT INTO shortage_adjustments (
					group_buy_id, order_id, adjuster_id, adjuster_username,
					item_name, buyer_id, buyer_username, old_quantity, new_quantity, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sessionID, row.ID, adjusterID, adjusterUsername,
				itemName, row.BuyerID, row.BuyerUsername, oldQty, newQty, ts,
			).Error; err != nil {
				return groupbuy.UpstreamErrorf(err, "寫入調整紀錄失敗")
			}

			records = append(records, groupbuy.AdjustmentRecord{
				BuyerUsername: row.BuyerUsername,
				OldQuantity:   oldQty,
				NewQuantity:   newQty,
			})
		}

		var version int
		_ = tx.Raw(`SELECT version FROM group_buys WHERE id = ?`, sessionID).Scan(&version).Error
		details, _ := json.Marshal(map[string]any{
			"item":           itemName,
			"affected_users": len(records),
			"action":         "adjust_shortage",
			"version":        version,
		})
		if err := tx.Exec(
			`INSERT INTO group_buy_logs (group_buy_id, user_id, username, action, details, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, adjusterID, adjusterUsername, "adjust_shortage", string(details), ts,
		).Error; err != nil {
			return groupbuy.UpstreamErrorf(err, "寫入操作紀錄失敗")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// logActionTx inserts the audit row against tx, so callers can include
// it in the same transaction as the state-row write it describes.
func logActionTx(tx *gorm.DB, sessionID, userID, username, action, detailsJSON string) error {
	if detailsJSON == "" {
		detailsJSON = "{}"
	}
	if err := tx.Exec(
		`INSERT INTO group_buy_logs (group_buy_id, user_id, username, action, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, userID, username, action, detailsJSON, now(),
	).Error; err != nil {
		return groupbuy.UpstreamErrorf(err, "寫入操作紀錄失敗")
	}
	return nil
}

func (s *sqlStore) LogAction(ctx context.Context, sessionID, userID, username, action, detailsJSON string) error {
	return logActionTx(s.db.WithContext(ctx), sessionID, userID, username, action, detailsJSON)
}

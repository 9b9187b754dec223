package repository

import (
	"encoding/json"
	"log"
	"time"

	"github.com/craftfolio/backend/api/domain"
	"github.com/craftfolio/backend/api/store"
)

// Row values come back from the store as whatever the driver decoded
// (int32 for SERIAL columns, float64 for DOUBLE PRECISION, ...), so the
// converters accept the handful of shapes pgx produces.

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asTime(v interface{}) time.Time {
	t, _ := v.(time.Time)
	return t
}

// Images are stored as a JSON array in a text column.
func encodeImages(images []string) string {
	if images == nil {
		images = []string{}
	}
	data, err := json.Marshal(images)
	if err != nil {
		log.Println("encode images:", err)
		return "[]"
	}
	return string(data)
}

func decodeImages(v interface{}) []string {
	images := []string{}
	s := asString(v)
	if s == "" {
		return images
	}
	if err := json.Unmarshal([]byte(s), &images); err != nil {
		log.Println("decode images:", err)
		return []string{}
	}
	return images
}

func rowToProject(row store.Row) domain.Project {
	return domain.Project{
		ID:          asInt(row["id"]),
		OwnerID:     asInt(row["owner_id"]),
		Name:        asString(row["name"]),
		Description: asString(row["description"]),
		Status:      domain.Status(asString(row["status"])),
		Images:      decodeImages(row["images"]),
		CreatedAt:   asTime(row["created_at"]),
		UpdatedAt:   asTime(row["updated_at"]),
	}
}

func rowToContact(row store.Row) domain.Contact {
	return domain.Contact{
		Name:    asString(row["name"]),
		Email:   asString(row["email"]),
		Phone:   asString(row["phone"]),
		Address: asString(row["address"]),
	}
}

func rowToFinancials(row store.Row) domain.Financials {
	return domain.Financials{
		Expenses: asFloat(row["expenses"]),
		Profits:  asFloat(row["profits"]),
	}
}

func rowToHistory(row store.Row) domain.StatusHistoryEntry {
	return domain.StatusHistoryEntry{
		ID:        asInt(row["id"]),
		ProjectID: asInt(row["project_id"]),
		OwnerID:   asInt(row["owner_id"]),
		Status:    domain.Status(asString(row["status"])),
		CreatedAt: asTime(row["created_at"]),
	}
}

func rowToReport(row store.Row) domain.FinancialReportRow {
	return domain.FinancialReportRow{
		ProjectID: asInt(row["project_id"]),
		OwnerID:   asInt(row["owner_id"]),
		Name:      asString(row["name"]),
		Status:    domain.Status(asString(row["status"])),
		Expenses:  asFloat(row["expenses"]),
		Profits:   asFloat(row["profits"]),
		NetProfit: asFloat(row["net_profit"]),
		CreatedAt: asTime(row["created_at"]),
	}
}

package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
)

// SQLiteMerchantCacheRepository implements MerchantCacheRepository over database/sql.
type SQLiteMerchantCacheRepository struct {
	db *sql.DB
}

func NewSQLiteMerchantCacheRepository(db *sql.DB) *SQLiteMerchantCacheRepository {
	return &SQLiteMerchantCacheRepository{db: db}
}

func (r *SQLiteMerchantCacheRepository) GetTag(ctx context.Context, merchant string) (*models.MerchantTagCache, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT merchant, tag_id, confidence, source, updated_at FROM merchant_tag_cache WHERE merchant = ?`,
		strings.ToUpper(merchant))
	var c models.MerchantTagCache
	var updatedAt string
	if err := row.Scan(&c.Merchant, &c.TagID, &c.Confidence, &c.Source, &updatedAt); err == sql.ErrNoRows {
		return nil, errs.NotFoundf("merchant tag cache entry for %q not found", merchant)
	} else if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get merchant tag cache", err)
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

// SetTag upserts the cached tag for a merchant. A user_override never loses
// to a later ai-sourced write; only another user_override write replaces
// it.
func (r *SQLiteMerchantCacheRepository) SetTag(ctx context.Context, c *models.MerchantTagCache) error {
	merchant := strings.ToUpper(c.Merchant)
	now := time.Now().UTC()

	if c.Source != "user_override" {
		var existingSource string
		err := r.db.QueryRowContext(ctx, `SELECT source FROM merchant_tag_cache WHERE merchant = ?`, merchant).Scan(&existingSource)
		if err == nil && existingSource == "user_override" {
			return nil
		}
		if err != nil && err != sql.ErrNoRows {
			return errs.Wrap(errs.KindIO, "check merchant tag cache override", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO merchant_tag_cache (merchant, tag_id, confidence, source, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(merchant) DO UPDATE SET tag_id = excluded.tag_id, confidence = excluded.confidence, source = excluded.source, updated_at = excluded.updated_at`,
		merchant, c.TagID, c.Confidence, c.Source, fmtTime(now))
	if err != nil {
		return errs.Wrap(errs.KindIO, "set merchant tag cache", err)
	}
	return nil
}

func (r *SQLiteMerchantCacheRepository) GetNormalization(ctx context.Context, rawDescription string) (*models.MerchantNormalizationCache, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT raw_description, normalized_name, updated_at FROM merchant_normalization_cache WHERE raw_description = ?`, rawDescription)
	var c models.MerchantNormalizationCache
	var updatedAt string
	if err := row.Scan(&c.RawDescription, &c.NormalizedName, &updatedAt); err == sql.ErrNoRows {
		return nil, errs.NotFoundf("merchant normalization cache entry not found")
	} else if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get merchant normalization cache", err)
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (r *SQLiteMerchantCacheRepository) SetNormalization(ctx context.Context, c *models.MerchantNormalizationCache) error {
	now := fmtTime(time.Now())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO merchant_normalization_cache (raw_description, normalized_name, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(raw_description) DO UPDATE SET normalized_name = excluded.normalized_name, updated_at = excluded.updated_at`,
		c.RawDescription, c.NormalizedName, now)
	if err != nil {
		return errs.Wrap(errs.KindIO, "set merchant normalization cache", err)
	}
	return nil
}

func (r *SQLiteMerchantCacheRepository) GetSubscriptionFlag(ctx context.Context, merchant string) (*models.MerchantSubscriptionCache, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT merchant, is_subscription, source, updated_at FROM merchant_subscription_cache WHERE merchant = ?`,
		strings.ToUpper(merchant))
	var c models.MerchantSubscriptionCache
	var updatedAt string
	if err := row.Scan(&c.Merchant, &c.IsSubscription, &c.Source, &updatedAt); err == sql.ErrNoRows {
		return nil, errs.NotFoundf("merchant subscription cache entry for %q not found", merchant)
	} else if err != nil {
		return nil, errs.Wrap(errs.KindIO, "get merchant subscription cache", err)
	}
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func (r *SQLiteMerchantCacheRepository) SetSubscriptionFlag(ctx context.Context, c *models.MerchantSubscriptionCache) error {
	merchant := strings.ToUpper(c.Merchant)
	now := time.Now().UTC()

	if c.Source != "user_override" {
		var existingSource string
		err := r.db.QueryRowContext(ctx, `SELECT source FROM merchant_subscription_cache WHERE merchant = ?`, merchant).Scan(&existingSource)
		if err == nil && existingSource == "user_override" {
			return nil
		}
		if err != nil && err != sql.ErrNoRows {
			return errs.Wrap(errs.KindIO, "check merchant subscription cache override", err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO merchant_subscription_cache (merchant, is_subscription, source, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(merchant) DO UPDATE SET is_subscription = excluded.is_subscription, source = excluded.source, updated_at = excluded.updated_at`,
		merchant, c.IsSubscription, c.Source, fmtTime(now))
	if err != nil {
		return errs.Wrap(errs.KindIO, "set merchant subscription cache", err)
	}
	return nil
}

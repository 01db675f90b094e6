// internal/directory/postgres.go
package directory

import (
	"context"
	"database/sql"

	"bushfire-beacon/internal/common/errors"
	"bushfire-beacon/internal/common/logger"
	"bushfire-beacon/internal/models"

	"github.com/lib/pq"
)

const findSubscribersQuery = `
	SELECT id, COALESCE(email, ''), COALESCE(phone, ''), regions, hazard_types, email_opt_in, sms_opt_in
	FROM subscribers
	WHERE $1 = ANY(regions)
		AND (hazard_types = '{}' OR $2 = ANY(hazard_types))
	ORDER BY id`

// Postgres is a Directory backed by the subscribers table.
type Postgres struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgres(db *sql.DB, log logger.Logger) *Postgres {
	return &Postgres{db: db, logger: log}
}

func (p *Postgres) FindSubscribers(ctx context.Context, region, hazardType string) ([]models.Subscriber, error) {
	rows, err := p.db.QueryContext(ctx, findSubscribersQuery, region, hazardType)
	if err != nil {
		p.logger.Error("subscriber lookup failed", map[string]interface{}{
			"region":      region,
			"hazard_type": hazardType,
			"error":       err.Error(),
		})
		return nil, errors.NewDirectoryUnavailableError(err)
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		var sub models.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.Phone, pq.Array(&sub.Regions), pq.Array(&sub.HazardTypes), &sub.EmailOptIn, &sub.SMSOptIn); err != nil {
			return nil, errors.NewDirectoryUnavailableError(err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDirectoryUnavailableError(err)
	}

	return subs, nil
}

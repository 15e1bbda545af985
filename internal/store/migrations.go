package store

import (
	"github.com/blang/semver"
)

type migration struct {
	fromVersion   semver.Version
	toVersion     semver.Version
	migrationFunc func(execer) error
}

// migrations defines the set of migrations necessary to advance the
// database to the latest expected version. The canonical schema is
// obtained by applying all migrations to an empty database.
var migrations = []migration{
	{semver.MustParse("0.0.0"), semver.MustParse("0.1.0"), func(e execer) error {
		_, err := e.Exec(`
			CREATE TABLE System (
				Key VARCHAR(64) PRIMARY KEY,
				Value VARCHAR(1024) NULL
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE Subscriptions (
				ID CHAR(26) PRIMARY KEY,
				Name VARCHAR(100) NOT NULL UNIQUE,
				URL VARCHAR(2048) NOT NULL,
				Secret VARCHAR(255) NULL,
				Events BYTEA NOT NULL,
				Filters BYTEA NOT NULL,
				Active BOOLEAN NOT NULL,
				RetryMaxAttempts INT NOT NULL,
				RetryBackoffMultiplier INT NOT NULL,
				RetryInitialDelayMs INT NOT NULL,
				TimeoutSeconds INT NOT NULL,
				Headers BYTEA NOT NULL,
				FilterMode VARCHAR(16) NULL,
				CreateAt BIGINT NOT NULL,
				UpdateAt BIGINT NOT NULL,
				DeleteAt BIGINT NOT NULL DEFAULT 0,
				DeliveredCount BIGINT NOT NULL DEFAULT 0,
				FailedCount BIGINT NOT NULL DEFAULT 0
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE DeliveryAttempts (
				ID CHAR(26) PRIMARY KEY,
				DeliveryID CHAR(26) NOT NULL,
				SubscriptionID CHAR(26) NOT NULL,
				EventID VARCHAR(128) NOT NULL,
				AttemptNumber INT NOT NULL,
				StartAt BIGINT NOT NULL,
				DurationMs BIGINT NOT NULL,
				Outcome VARCHAR(16) NOT NULL,
				HTTPStatus INT NOT NULL,
				ErrorCategory VARCHAR(64) NULL,
				ErrorMessage VARCHAR(2048) NULL,
				NextRetryAt BIGINT NULL,
				ResponseBodyPrefix VARCHAR(1024) NULL
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE Events (
				ID VARCHAR(128) PRIMARY KEY,
				SourceID VARCHAR(128) NOT NULL,
				EventType VARCHAR(128) NOT NULL,
				Fingerprint VARCHAR(64) NOT NULL,
				Collection VARCHAR(128) NOT NULL,
				ProcessedAt BIGINT NOT NULL
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE DeadLetterQueue (
				ID CHAR(26) PRIMARY KEY,
				SubscriptionID CHAR(26) NOT NULL,
				EventType VARCHAR(128) NOT NULL,
				FailureReason VARCHAR(2048) NULL,
				AttemptsConsumed INT NOT NULL,
				DeadLetteredAt BIGINT NOT NULL,
				RetryCount INT NOT NULL DEFAULT 0,
				LastRetryOutcome VARCHAR(16) NULL,
				Delivery BYTEA NOT NULL
			);
		`)
		if err != nil {
			return err
		}

		_, err = e.Exec(`
			CREATE TABLE Cursor (
				ID INT PRIMARY KEY,
				Token VARCHAR(1024) NOT NULL,
				UpdateAt BIGINT NOT NULL
			);
		`)
		if err != nil {
			return err
		}

		return nil
	}},
	{semver.MustParse("0.1.0"), semver.MustParse("0.2.0"), func(e execer) error {
		_, err := e.Exec(`CREATE INDEX idx_delivery_attempts_sub_start ON DeliveryAttempts (SubscriptionID, StartAt DESC);`)
		if err != nil {
			return err
		}
		_, err = e.Exec(`CREATE INDEX idx_delivery_attempts_event ON DeliveryAttempts (EventID);`)
		if err != nil {
			return err
		}
		_, err = e.Exec(`CREATE UNIQUE INDEX idx_events_dedup ON Events (SourceID, EventType, Fingerprint);`)
		if err != nil {
			return err
		}
		_, err = e.Exec(`CREATE INDEX idx_events_processed ON Events (ProcessedAt);`)
		if err != nil {
			return err
		}
		_, err = e.Exec(`CREATE INDEX idx_dlq_at ON DeadLetterQueue (DeadLetteredAt DESC);`)
		if err != nil {
			return err
		}
		_, err = e.Exec(`CREATE INDEX idx_dlq_subscription ON DeadLetterQueue (SubscriptionID);`)
		if err != nil {
			return err
		}
		_, err = e.Exec(`CREATE INDEX idx_dlq_event_type ON DeadLetterQueue (EventType);`)
		return err
	}},
	{semver.MustParse("0.2.0"), semver.MustParse("0.3.0"), func(e execer) error {
		_, err := e.Exec(`ALTER TABLE Events ADD COLUMN Snapshot BYTEA NULL;`)
		return err
	}},
}

package cleanuppreferences

import (
	"context"
	"errors"
	"fmt"
	"io"

	logger "github.com/sirupsen/logrus"

	"wikiguard/src/database"
	"wikiguard/src/model"
	"wikiguard/src/repository"
)

// UserScriptPrefix marks preferences set by user scripts. Their names are
// not known in advance, so they are never treated as unknown.
const UserScriptPrefix = "userjs-"

// CleanupPreferences removes hidden or unknown user preferences.
type CleanupPreferences struct {
	Log    *logger.Entry
	Out    io.Writer
	Repo   *repository.UserPropertyRepository
	Tx     *database.TxManager
	Config *Config

	Hidden  bool
	Unknown bool
	DryRun  bool
}

func (c *CleanupPreferences) Start(ctx context.Context) error {
	if c.Config == nil {
		c.Config = GetConfig()
	}
	if c.Config.BatchSize <= 0 {
		c.Config.BatchSize = 50
	}

	if !c.Hidden && !c.Unknown {
		c.output("Did not select one of --hidden, --unknown, exiting\n")
		return nil
	}

	// Hidden preferences are dropped one name at a time to avoid an IN
	// over a large table.
	if c.Hidden {
		if len(c.Config.HiddenPrefs) == 0 {
			c.output("No hidden preferences, skipping\n")
		}
		for _, pref := range c.Config.HiddenPrefs {
			if err := c.deleteByFilter(ctx, "Dropping hidden preferences", repository.PropertyFilter{Property: pref}); err != nil {
				return err
			}
		}
	}

	if c.Unknown {
		if len(c.Config.DefaultUserOptions) == 0 {
			return errors.New("DEFAULT_USER_OPTIONS is empty, refusing to drop every preference")
		}
		filter := repository.PropertyFilter{
			Exclude:       c.Config.DefaultUserOptions,
			ExcludePrefix: UserScriptPrefix,
		}
		if err := c.deleteByFilter(ctx, "Dropping unknown preferences", filter); err != nil {
			return err
		}
	}
	return nil
}

func (c *CleanupPreferences) deleteByFilter(ctx context.Context, startMessage string, filter repository.PropertyFilter) error {
	c.output(startMessage + "...\n")

	total, offset := 0, 0
	for {
		rows, err := c.Repo.FindBatch(ctx, filter, c.Config.BatchSize, offset)
		if err != nil {
			return fmt.Errorf("select user preferences: %w", err)
		}

		total += len(rows)
		if len(rows) == 0 {
			c.output(fmt.Sprintf("DONE! (handled %d entries)\n", total))
			return nil
		}

		c.output(fmt.Sprintf("..doing %d entries\n", len(rows)))

		// rows that are not deleted stay in the result set, so page past them
		kept := 0
		for _, row := range rows {
			if c.DryRun {
				c.output(fmt.Sprintf("    DRY RUN, would drop: [up_user] => '%d' [up_property] => '%s' [up_value] => '%s'\n",
					row.User, row.Property, row.Value))
				kept++
				continue
			}

			deleted, err := c.deleteRow(ctx, row)
			if err != nil {
				return err
			}
			if deleted == 0 {
				kept++
			}
		}
		offset += kept
	}
}

func (c *CleanupPreferences) deleteRow(ctx context.Context, row model.UserProperty) (int64, error) {
	var deleted int64
	err := c.Tx.Transaction(ctx, func(tx *database.Tx) error {
		n, err := c.Repo.Delete(tx, row)
		deleted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("drop preference %q of user %d: %w", row.Property, row.User, err)
	}
	if c.Log != nil {
		c.Log.WithFields(logger.Fields{"up_user": row.User, "up_property": row.Property}).Debug("preference dropped")
	}
	return deleted, nil
}

func (c *CleanupPreferences) output(message string) {
	if c.Out == nil {
		return
	}
	_, _ = io.WriteString(c.Out, message)
}

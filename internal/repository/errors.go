package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var ErrDuplicate = errors.New("already exists")

// isDuplicate matches MySQL's ER_DUP_ENTRY.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateReadOnlyAcceptsSelect(t *testing.T) {
	require.NoError(t, ValidateReadOnly("SELECT region, amount FROM fact_revenue WHERE region = 'west'"))
}

func TestValidateReadOnlyAcceptsCTE(t *testing.T) {
	require.NoError(t, ValidateReadOnly(`
		WITH totals AS (SELECT region, SUM(amount) AS total FROM fact_revenue GROUP BY region)
		SELECT * FROM totals ORDER BY total DESC
	`))
}

func TestValidateReadOnlyAcceptsTrailingSemicolon(t *testing.T) {
	require.NoError(t, ValidateReadOnly("SELECT 1;  "))
}

func TestValidateReadOnlyRejectsDropTable(t *testing.T) {
	err := ValidateReadOnly("DROP TABLE fact_revenue")
	require.Error(t, err)
}

func TestValidateReadOnlyRejectsMultiStatement(t *testing.T) {
	err := ValidateReadOnly("SELECT 1; DROP TABLE fact_revenue;")
	require.Error(t, err)
}

func TestValidateReadOnlyRejectsNonSelectStart(t *testing.T) {
	err := ValidateReadOnly("UPDATE fact_revenue SET amount = 0")
	require.Error(t, err)
}

func TestValidateReadOnlyRejectsEmpty(t *testing.T) {
	err := ValidateReadOnly("   ")
	require.Error(t, err)
}

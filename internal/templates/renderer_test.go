package templates

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer(zap.NewNop())
	require.NoError(t, err)

	text, err := r.Render(PurchaseRefunded, map[string]string{
		"purchase_id": "purchase-1",
		"product_id":  "p2",
		"amount":      "7.50",
		"refund_id":   "re_1",
	})
	require.NoError(t, err)
	require.Contains(t, text, "purchase-1")
	require.Contains(t, text, "7.50")
	require.Contains(t, text, "re_1")

	text, err = r.Render(OpsAlert, map[string]string{"text": "Refund failed for purchase purchase-1"})
	require.NoError(t, err)
	require.Contains(t, text, "Refund failed for purchase purchase-1")

	_, err = r.Render("nope", nil)
	require.Error(t, err)
}

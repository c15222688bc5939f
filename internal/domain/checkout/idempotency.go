package checkout

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/xenking/foodhub-storefront/internal/domain/order"
)

var idempotencyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://foodhub.dev/checkout"))

// IdempotencyKey derives a stable key for one provider group of a checkout.
// Resubmitting the same cart yields the same keys.
func IdempotencyKey(customerID, group string, req order.CreateRequest) string {
	var b strings.Builder
	b.WriteString(customerID)
	b.WriteByte('|')
	b.WriteString(group)
	b.WriteByte('|')
	b.WriteString(req.DeliveryAddress)
	for _, it := range req.Items {
		b.WriteByte('|')
		b.WriteString(it.MealID)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(it.Quantity))
		b.WriteByte(':')
		b.WriteString(it.UnitPrice.String())
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(b.String())).String()
}

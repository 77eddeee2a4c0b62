package gateway

// URLSet holds the five callback URLs configured per gateway. All are
// absolute; they double as placeholder values in parameter templates.
type URLSet struct {
	Return  string `mapstructure:"return" validate:"required,url"`
	Notify  string `mapstructure:"notify" validate:"required,url"`
	Cancel  string `mapstructure:"cancel" validate:"required,url"`
	Success string `mapstructure:"success" validate:"required,url"`
	Fail    string `mapstructure:"fail" validate:"required,url"`
}

// Config is the static configuration of one gateway, immutable after load.
//
// Template maps use *string values: a nil value means "no static value
// configured here, fall through" (base template, then the inbound request
// field of the same name).
type Config struct {
	URLs             URLSet             `mapstructure:"urls"`
	Parameters       map[string]*string `mapstructure:"parameters"`
	Purchase         map[string]*string `mapstructure:"purchase"`
	Complete         map[string]*string `mapstructure:"complete"`
	PrefersAuthorize bool               `mapstructure:"prefers_authorize"`
}

// template returns the parameter template for the given operation, falling
// back to the base parameters map when no override is configured.
func (c Config) template(op Kind) map[string]*string {
	switch op {
	case KindPurchase:
		if c.Purchase != nil {
			return c.Purchase
		}
	case KindAuthorize, KindCompletePurchase:
		if c.Complete != nil {
			return c.Complete
		}
	}
	return c.Parameters
}

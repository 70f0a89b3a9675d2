package medchain

import "reflect"

// IsProviderAvailable reports whether p is a usable wallet provider. It never
// calls the provider. A typed nil pointer wrapped in the interface counts as
// absent.
func IsProviderAvailable(p WalletProvider) bool {
	if p == nil {
		return false
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return !v.IsNil()
	}
	return true
}

func providerMissingError() *GatewayError {
	return NewGatewayError(ErrCodeProviderMissing, "wallet provider not installed", nil)
}

package feed

import "github.com/hitoshi/shoppingfeed/internal/model"

// EnabledShippingMethods は有効なプロバイダに属する有効な配送方法を元の順序で平坦化して返す。
func EnabledShippingMethods(providers []model.ShippingProvider) []model.ShippingMethod {
	methods := make([]model.ShippingMethod, 0)
	for _, p := range providers {
		if !p.Enabled {
			continue
		}
		for _, m := range p.Methods {
			if m.Enabled {
				methods = append(methods, m)
			}
		}
	}
	return methods
}

// ApplicableShippingMethods はアイテムの受け渡し方法と1つでも共通する配送方法を返す。
// methodsは EnabledShippingMethods の結果を想定する。該当がなければ空スライスを返す。
func ApplicableShippingMethods(methods []model.ShippingMethod, supported []model.FulfillmentType) []model.ShippingMethod {
	result := make([]model.ShippingMethod, 0)
	if len(supported) == 0 {
		return result
	}

	want := make(map[model.FulfillmentType]struct{}, len(supported))
	for _, ft := range supported {
		want[ft] = struct{}{}
	}

	for _, m := range methods {
		for _, ft := range m.FulfillmentTypes {
			if _, ok := want[ft]; ok {
				result = append(result, m)
				break
			}
		}
	}
	return result
}

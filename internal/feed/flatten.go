package feed

import "github.com/hitoshi/shoppingfeed/internal/model"

// FindDeepestVariants は商品のバリアントツリーを深さ優先・左から右に走査し、
// 子オプションを持たないリーフノードのみを返す。
// 子を持つノード自体は結果に含めない。バリアントがない場合は空スライスを返す。
//
// 任意の深さのツリーを扱えるよう、再帰ではなく明示的なスタックで走査する。
func FindDeepestVariants(variants []*model.VariantNode) []*model.VariantNode {
	result := make([]*model.VariantNode, 0)
	if len(variants) == 0 {
		return result
	}

	stack := make([]*model.VariantNode, 0, len(variants))
	pushReversed := func(nodes []*model.VariantNode) {
		for i := len(nodes) - 1; i >= 0; i-- {
			if nodes[i] != nil {
				stack = append(stack, nodes[i])
			}
		}
	}

	pushReversed(variants)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.IsLeaf() {
			result = append(result, node)
			continue
		}
		pushReversed(node.Options)
	}

	return result
}

package rule

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"storefront/internal/pkg/apperr"
	"storefront/internal/service/order/domain"
)

// CELPolicy 是 port.CheckoutPolicy 的 CEL 实现。
// 每条规则是一个布尔表达式，结账时对每一行求值，结果必须为 true。
//
// 可用变量: productId, name, size, color (string), price, quantity (int), tracked (bool)。
type CELPolicy struct {
	rules []compiledRule
}

type compiledRule struct {
	expr string
	prg  cel.Program
}

// NewCELPolicy 在启动时编译所有规则，语法或类型错误直接返回。
func NewCELPolicy(exprs []string) (*CELPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("productId", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("size", cel.StringType),
		cel.Variable("color", cel.StringType),
		cel.Variable("price", cel.IntType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("tracked", cel.BoolType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	p := &CELPolicy{}
	for _, expr := range exprs {
		ast, iss := env.Compile(expr)
		if iss != nil && iss.Err() != nil {
			return nil, errors.Wrapf(iss.Err(), "compile checkout rule %q", expr)
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, errors.Errorf("checkout rule %q must evaluate to bool, got %s", expr, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, errors.Wrapf(err, "build checkout rule %q", expr)
		}
		p.rules = append(p.rules, compiledRule{expr: expr, prg: prg})
	}
	return p, nil
}

func (p *CELPolicy) Evaluate(index int, item domain.LineItem) error {
	if len(p.rules) == 0 {
		return nil
	}
	vars := map[string]interface{}{
		"productId": item.ProductID,
		"name":      item.Name,
		"size":      item.Size,
		"color":     item.Color,
		"price":     item.Price,
		"quantity":  int64(item.Quantity),
		"tracked":   item.Tracked(),
	}

	field := fmt.Sprintf("items[%d]", index)
	for _, r := range p.rules {
		out, _, err := r.prg.Eval(vars)
		if err != nil {
			return apperr.Invalid(field, fmt.Sprintf("rule %q could not be evaluated: %v", r.expr, err))
		}
		if ok, _ := out.Value().(bool); !ok {
			return apperr.Invalid(field, fmt.Sprintf("violates checkout rule %q", r.expr))
		}
	}
	return nil
}

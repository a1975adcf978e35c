package runner

import (
	"fmt"

	"github.com/abdul-hamid-achik/hitrunner/packages/core/testcase"
)

// callHooks evaluates each hook expression with vars. A hook with an
// assignment stores its value in vars, so later hooks and the rest of the
// step can use it.
func (c *CaseRunner) callHooks(hooks []testcase.Hook, vars testcase.Variables, stage string) error {
	for _, hook := range hooks {
		value, err := c.runner.engine.Resolve(hook.Expr, vars)
		if err != nil {
			return fmt.Errorf("%s hook %q failed: %w", stage, hook.Expr, err)
		}
		if hook.Assign == "" {
			continue
		}
		vars[hook.Assign] = value
		c.logger.Debug("hook assigned variable", "stage", stage, "var", hook.Assign, "value", value)
	}
	return nil
}

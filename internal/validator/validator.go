// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{2,5}$`)
	stockSymbolRegex  = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,9}$`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("currency_code", validateCurrencyCode)
		_ = v.RegisterValidation("stock_symbol", validateStockSymbol)
		_ = v.RegisterValidation("decimal_amount", validateDecimalAmount)
	}
}

// Whether a rate exists for the code is the ledger's call, not the binder's.
func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyCodeRegex.MatchString(fl.Field().String())
}

func validateStockSymbol(fl validator.FieldLevel) bool {
	return stockSymbolRegex.MatchString(fl.Field().String())
}

// validateDecimalAmount accepts any finite decimal. Sign and scale are
// checked by the ledger so the error names the rule that failed.
func validateDecimalAmount(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(fl.Field().String())
	return err == nil
}

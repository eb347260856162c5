package config

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(c *Config) error { return validate.Struct(c) }

package httpapi

import "github.com/nextlevelbuilder/fnhost/internal/deploy"

func isAlreadyRunning(err error) bool { return deploy.IsAlreadyRunning(err) }
func isCoordNotFound(err error) bool  { return deploy.IsNotFound(err) }

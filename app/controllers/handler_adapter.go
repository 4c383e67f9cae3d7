package controllers

import (
	"github.com/gofiber/fiber/v2"
)

// Controllers bundles the controller instances used by the router.
type Controllers struct {
	Auth       *AuthController
	Credits    *CreditsController
	Generation *GenerationController
	Video      *VideoController
	User       *UserController
	Admin      *AdminController
	Billing    *BillingController
}

// Global controller instances
var registered *Controllers

// InitializeControllers sets the instances the adapter functions delegate to.
func InitializeControllers(c *Controllers) {
	registered = c
}

func getControllers() *Controllers {
	if registered == nil {
		panic("controllers not initialized. Call InitializeControllers first.")
	}
	return registered
}

// Adapter functions to maintain compatibility with existing router

func HandleAuthRegister(c *fiber.Ctx) error { return getControllers().Auth.HandleRegister(c) }
func HandleAuthLogin(c *fiber.Ctx) error    { return getControllers().Auth.HandleLogin(c) }
func HandleAuthLogout(c *fiber.Ctx) error   { return getControllers().Auth.HandleLogout(c) }
func HandleAuthMe(c *fiber.Ctx) error       { return getControllers().Auth.HandleMe(c) }
func HandleOAuthCallback(c *fiber.Ctx) error {
	return getControllers().Auth.HandleOAuthCallback(c)
}

func HandleGetCredits(c *fiber.Ctx) error { return getControllers().Credits.HandleGetCredits(c) }

func HandleGenerateAvatar(c *fiber.Ctx) error {
	return getControllers().Generation.HandleGenerateAvatar(c)
}
func HandleListAvatars(c *fiber.Ctx) error { return getControllers().Generation.HandleListAvatars(c) }
func HandleGenerateCombine(c *fiber.Ctx) error {
	return getControllers().Generation.HandleGenerateCombine(c)
}

func HandleVideoGenerate(c *fiber.Ctx) error { return getControllers().Video.HandleGenerate(c) }
func HandleVideoStatus(c *fiber.Ctx) error   { return getControllers().Video.HandleStatus(c) }
func HandleVideoSave(c *fiber.Ctx) error     { return getControllers().Video.HandleSave(c) }
func HandleVideoList(c *fiber.Ctx) error     { return getControllers().Video.HandleList(c) }
func HandleVideoDelete(c *fiber.Ctx) error   { return getControllers().Video.HandleDelete(c) }

func HandleUserStats(c *fiber.Ctx) error { return getControllers().User.HandleStats(c) }
func HandleUserProfileUpdate(c *fiber.Ctx) error {
	return getControllers().User.HandleUpdateProfile(c)
}

// HandleAdminGetLinkedCustomer - Adapter for reading the caller's billing link
func HandleAdminGetLinkedCustomer(c *fiber.Ctx) error {
	return getControllers().Admin.HandleGetLinkedCustomer(c)
}

// HandleAdminLinkCustomer - Adapter for linking a billing customer to the caller
func HandleAdminLinkCustomer(c *fiber.Ctx) error {
	return getControllers().Admin.HandleLinkCustomer(c)
}

// HandleAdminUsers - Adapter for user management
func HandleAdminUsers(c *fiber.Ctx) error {
	return getControllers().Admin.HandleListUsers(c)
}

// HandleAdminUserUpdate - Adapter for user update
func HandleAdminUserUpdate(c *fiber.Ctx) error {
	return getControllers().Admin.HandleUpdateUser(c)
}

// HandleAdminAwardCredits - Adapter for manual credit adjustment
func HandleAdminAwardCredits(c *fiber.Ctx) error {
	return getControllers().Admin.HandleAwardCredits(c)
}

// HandleAdminStats - Adapter for dashboard stats
func HandleAdminStats(c *fiber.Ctx) error {
	return getControllers().Admin.HandleStats(c)
}

func HandlePolarWebhook(c *fiber.Ctx) error { return getControllers().Billing.HandlePolarWebhook(c) }
func HandleCheckout(c *fiber.Ctx) error     { return getControllers().Billing.HandleCheckout(c) }
func HandlePortal(c *fiber.Ctx) error       { return getControllers().Billing.HandlePortal(c) }

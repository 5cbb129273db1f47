package accounts

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

// RegisterAdminRoutes mounts the account management endpoints. Callers are
// expected to guard the group with AdminRoute middleware.
func RegisterAdminRoutes[T any](app router.Router[T], opts ...AdminControllerOption) {

	controller := NewAdminController(opts...)

	base := controller.Routes.Accounts

	app.Get(base, controller.Index).SetName("admin-accounts.index")
	app.Get(fmt.Sprintf("%s/new", base), controller.New).SetName("admin-accounts.new")
	app.Post(base, controller.Create).SetName("admin-accounts.create")
	app.Get(fmt.Sprintf("%s/:id/edit", base), controller.Edit).SetName("admin-accounts.edit")
	app.Post(fmt.Sprintf("%s/:id", base), controller.Update).SetName("admin-accounts.update")
	app.Post(fmt.Sprintf("%s/:id/delete", base), controller.Destroy).SetName("admin-accounts.destroy")
}

type AdminControllerRoutes struct {
	Accounts string
}

type AdminControllerViews struct {
	Index string
	New   string
	Edit  string
}

type AdminController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Activity     ActivitySink
	Routes       *AdminControllerRoutes
	Views        *AdminControllerViews
	ErrorHandler router.ErrorHandler
}

type AdminControllerOption func(*AdminController) *AdminController

func NewAdminController(opts ...AdminControllerOption) *AdminController {
	c := &AdminController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AdminControllerRoutes{
			Accounts: "/admin/accounts",
		},
		Views: &AdminControllerViews{
			Index: "admin/accounts/index",
			New:   "admin/accounts/new",
			Edit:  "admin/accounts/edit",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in admin controller...")
	}

	return c
}

func (a *AdminController) Index(ctx router.Context) error {
	accounts, err := a.Repo.Accounts().List(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.Index, router.ViewContext{
		"records": accounts,
	})
}

func (a *AdminController) New(ctx router.Context) error {
	roles, err := a.Repo.Roles().List(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.New, router.ViewContext{
		"errors": map[string]string{},
		"record": CreateAccountMessage{},
		"roles":  roles,
	})
}

// AdminAccountPayload is the create and update form payload
type AdminAccountPayload struct {
	FirstName string   `form:"first_name" json:"first_name"`
	LastName  string   `form:"last_name" json:"last_name"`
	Email     string   `form:"email" json:"email"`
	Phone     string   `form:"phone_number" json:"phone_number"`
	Password  string   `form:"password" json:"password"`
	RoleIDs   []string `form:"role_ids" json:"role_ids"`
	Activated bool     `form:"activated" json:"activated"`
}

// Validate will validate the payload for account creation
func (r AdminAccountPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber("US"))),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(&r.RoleIDs, validation.Each(is.UUIDv4)),
	)
}

// ValidateUpdate skips the credential fields, admins never set passwords
// on existing accounts.
func (r AdminAccountPayload) ValidateUpdate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Phone, validation.By(ValidatePhoneNumber("US"))),
		validation.Field(&r.RoleIDs, validation.Each(is.UUIDv4)),
	)
}

func (r AdminAccountPayload) roleIDs() ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(r.RoleIDs))
	for _, raw := range r.RoleIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *AdminController) Create(ctx router.Context) error {
	payload := new(AdminAccountPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("admin create account parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.New, router.ViewContext{
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("admin create account validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.New, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	roleIDs, err := payload.roleIDs()
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	req := CreateAccountMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		RoleIDs:   roleIDs,
		Activated: payload.Activated,
	}

	create := NewCreateAccountHandler(a.Repo).WithLogger(a.Logger)

	if err := create.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("admin create account error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error creating account",
		}).Render(a.Views.New, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account created",
	}).Redirect(a.Routes.Accounts, fiber.StatusSeeOther)
}

func (a *AdminController) Edit(ctx router.Context) error {
	accountID := ctx.Param("id", "")

	account, err := a.Repo.Accounts().GetByIdentifier(ctx.Context(), accountID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	roles, err := a.Repo.Roles().List(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.Edit, router.ViewContext{
		"errors": map[string]string{},
		"record": account,
		"roles":  roles,
	})
}

func (a *AdminController) Update(ctx router.Context) error {
	accountID, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(AdminAccountPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("admin update account parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Edit, router.ViewContext{
			"record": payload,
		})
	}

	if err := payload.ValidateUpdate(); err != nil {
		a.Logger.Error("admin update account validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Edit, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	roleIDs, err := payload.roleIDs()
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	req := UpdateAccountMessage{
		AccountID: accountID,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		RoleIDs:   roleIDs,
	}

	update := NewUpdateAccountHandler(a.Repo).WithLogger(a.Logger)

	if err := update.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("admin update account error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error updating account",
		}).Render(a.Views.Edit, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account updated",
	}).Redirect(a.Routes.Accounts, fiber.StatusSeeOther)
}

func (a *AdminController) Destroy(ctx router.Context) error {
	accountID, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	req := DeleteAccountMessage{
		AccountID: accountID,
	}

	if claims, ok := GetRouterClaims(ctx, ""); ok {
		req.Actor = ActorRef{ID: claims.AccountID(), Type: "account"}
	}

	del := NewDeleteAccountHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := del.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("admin delete account error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error deleting account",
		}).Redirect(a.Routes.Accounts, fiber.StatusSeeOther)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account deleted",
	}).Redirect(a.Routes.Accounts, fiber.StatusSeeOther)
}

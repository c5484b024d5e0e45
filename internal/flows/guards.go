package flows

import (
	"github.com/wolfman30/vocal-vent/internal/validation"
	"github.com/wolfman30/vocal-vent/internal/wizard"
)

// Form field names.
const (
	FieldDate          = "date"
	FieldTime          = "time"
	FieldNotes         = "notes"
	FieldCompanyName   = "companyName"
	FieldEmployeeCount = "employeeCount"
	FieldIndustry      = "industry"
	FieldContactName   = "contactName"
	FieldEmail         = "email"
	FieldPhone         = "phone"
	FieldMessage       = "message"
)

func (c *Controller) bookingWizard() *wizard.Machine {
	m := wizard.MustNew(wizard.Steps(wizard.FlowBooking)...)
	mustGuard(m, wizard.StepPackage, func() error {
		if c.state.CurrentBooking == nil {
			return missing("packageId")
		}
		return nil
	})
	mustGuard(m, wizard.StepSchedule, func() error {
		form := c.forms[wizard.FlowBooking]
		return validation.Schedule(form[FieldDate], form[FieldTime], c.reg.now())
	})
	return m
}

func (c *Controller) chatWizard() *wizard.Machine {
	m := wizard.MustNew(wizard.Steps(wizard.FlowChat)...)
	mustGuard(m, wizard.StepPlatform, func() error {
		if c.state.CurrentChat == nil {
			return missing("platform")
		}
		return nil
	})
	mustGuard(m, wizard.StepDuration, func() error {
		if c.state.CurrentChat == nil || c.state.CurrentChat.Duration == "" {
			return missing("duration")
		}
		return nil
	})
	return m
}

func (c *Controller) corporateWizard() *wizard.Machine {
	m := wizard.MustNew(wizard.Steps(wizard.FlowCorporate)...)
	mustGuard(m, wizard.StepDetails, func() error {
		form := c.forms[wizard.FlowCorporate]
		return validation.Validate(
			validation.Required(FieldCompanyName, form[FieldCompanyName]),
			validation.Required(FieldEmployeeCount, form[FieldEmployeeCount]),
			validation.Field{Name: FieldIndustry, Kind: validation.KindText, Value: form[FieldIndustry]},
		)
	})
	mustGuard(m, wizard.StepContact, func() error {
		form := c.forms[wizard.FlowCorporate]
		return validation.Validate(
			validation.Required(FieldContactName, form[FieldContactName]),
			validation.Field{Name: FieldEmail, Kind: validation.KindEmail, Value: form[FieldEmail], Required: true},
			validation.Field{Name: FieldPhone, Kind: validation.KindTel, Value: form[FieldPhone], Required: true},
		)
	})
	return m
}

func mustGuard(m *wizard.Machine, step string, g wizard.Guard) {
	if err := m.Guard(step, g); err != nil {
		panic(err)
	}
}

func missing(field string) error {
	errs := &validation.Errors{}
	errs.Add(field, validation.MsgRequired)
	return errs
}

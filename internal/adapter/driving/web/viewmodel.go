package web

import (
	"errors"
	"fmt"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/fitflow/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/fitflow/internal/application"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
)

const clockSkewHint = "One known cause of this type of failure is if the clock is wrong on the system running fitflow."

// toSuccessViewModel converts a finished handshake to the success page.
func toSuccessViewModel(c application.Completion) vm.ResultViewModel {
	name := c.Provider.DisplayName()
	msg := fmt.Sprintf("Successfully authorized with %s. You can close this window now.", name)
	if c.Username != "" {
		msg += fmt.Sprintf("\n\nConnected as **%s**.", c.Username)
	}

	return vm.ResultViewModel{
		Success: true,
		Title:   name + " authorized",
		Heading: "Authorized",
		Message: markdown(msg),
	}
}

// toHandshakeFailureViewModel converts a provider failure to the failure page.
// The provider's status code and body are shown when the provider answered.
func toHandshakeFailureViewModel(hsErr *application.HandshakeError) vm.ResultViewModel {
	name := hsErr.Provider.DisplayName()

	msg := "Something went wrong with the authentication process."
	if hsErr.Stage == application.StageProfile {
		msg = "Something went wrong fetching the user profile."
	}

	page := vm.ResultViewModel{
		Title:   name + " authorization failed",
		Heading: "Oh no!",
		Message: markdown(msg),
	}

	var provErr *model.ProviderError
	if errors.As(hsErr.Err, &provErr) {
		page.StatusCode = provErr.StatusCode
		page.ProviderBody = providerBody(provErr.Body)
	} else {
		page.ProviderBody = providerBody(hsErr.Err.Error())
	}

	if hsErr.Provider == model.ProviderFitbit {
		page.Hint = markdown(clockSkewHint)
	}
	return page
}

// toRejectionViewModel builds the page shown when a request is refused
// before any provider call, or fails internally.
func toRejectionViewModel(provider model.Provider, heading, msg string) vm.ResultViewModel {
	return vm.ResultViewModel{
		Title:   provider.DisplayName() + " authorization failed",
		Heading: heading,
		Message: markdown(msg),
	}
}

// markdown renders src into a trusted page fragment.
func markdown(src string) templ.Component {
	return trusted(RenderMarkdown(src))
}

// providerBody strips a provider response into a trusted page fragment.
func providerBody(body string) templ.Component {
	return trusted(SanitizeProviderBody(body))
}

// trusted marks sanitizer output as safe HTML. Only the two helpers above
// produce page fragments.
func trusted(html string) templ.Component {
	if html == "" {
		return nil
	}
	return templ.Raw(html)
}

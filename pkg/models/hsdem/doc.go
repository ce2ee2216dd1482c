/*
Package hsdem implements the hierarchical spatial Durbin error model, with
spatial dependence in the upper-level errors only:

	y = Xd Betas + Delta Alphas + e,   e ~ N(0, Sigma2 * I)
	(I - Lambda M) Alphas = Z Gammas + u,   u ~ N(0, Tau2 * I)

Xd augments the lower-level covariates with their spatial lags W X (the
Durbin terms), so Betas stacks the direct and lagged coefficients. Lambda is
the single Metropolis block; everything else is conjugate.

The draw order follows the reference formulation: Alphas, Betas, Sigma2,
Tau2, Gammas, Lambda.
*/
package hsdem

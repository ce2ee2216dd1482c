/*
Package hse implements the hierarchical spatial error model with spatial
dependence at both levels:

	y = X Betas + Delta Alphas + e,   e ~ N(0, Sigma2 * [(I - Rho W)' (I - Rho W)]^-1)
	Alphas = Z Gammas + u,            u ~ N(0, Tau2 * [(I - Lambda M)' (I - Lambda M)]^-1)

with N lower-level observations grouped into J regions by the indicator
matrix Delta, p lower-level covariates in X and q upper-level covariates
in Z.

Betas, Alphas and Gammas have conjugate multivariate-normal conditionals and
Sigma2/Tau2 inverse-gamma conditionals, all drawn exactly. Rho and Lambda
have no closed form: they are updated by adaptive random-walk Metropolis
steps truncated to the admissible range given by the reciprocal extremal
eigenvalues of W and M, with a stable log-determinant in the acceptance
ratio.

The package implements sampler.Model; construct with New and hand the result
to sampler.New.
*/
package hse
